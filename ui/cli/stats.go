// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/toeirei/annodb/internal/db"
	"github.com/toeirei/annodb/internal/i18n"
)

// statsCmd represents the 'stats' command. It prints per-dataset row
// counts for all five annotation tables.
var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts per dataset",
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		stats, err := db.GetDatasetStats()
		if err != nil {
			log.Fatalf("%s", i18n.T("stats.cli_error", err))
		}
		fmt.Println(i18n.T("stats.cli_header"))
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATASET\tIMAGES\tCATEGORIES\tANNOTATIONS\tSEGMENTATIONS")
		for _, s := range stats {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", s.Name, s.Images, s.Categories, s.Annotations, s.Segmentations)
		}
		_ = w.Flush()
	},
}
