// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/toeirei/annodb/internal/db"
	"github.com/toeirei/annodb/internal/i18n"
)

// verifyCmd represents the 'verify' command. It runs the referential and
// geometric integrity probes against the whole database.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check referential integrity and bounding box sanity",
	Long: `Runs integrity probes over the annotation database: orphaned rows,
duplicate external ids, nonpositive bounding box extents and boxes
that fall outside their image bounds.

Exits with a nonzero status when violations are found.`,
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(i18n.T("verify.cli_starting"))
		violations, err := db.VerifyIntegrity()
		if err != nil {
			log.Fatalf("%s", i18n.T("verify.cli_error", err))
		}
		if len(violations) == 0 {
			fmt.Println(i18n.T("verify.cli_clean"))
			return
		}
		fmt.Printf("%s\n", i18n.T("verify.cli_violations", len(violations)))
		for _, v := range violations {
			fmt.Printf("  [%s] %s\n", v.Check, v.Detail)
		}
		os.Exit(1)
	},
}
