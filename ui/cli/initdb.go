// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/toeirei/annodb/internal/db"
	"github.com/toeirei/annodb/internal/i18n"
	"github.com/toeirei/annodb/internal/importer"
)

// initCmd represents the 'init' command. It drops and recreates the
// annotation schema and seeds the dataset registry.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the annotation schema (destructive)",
	Long: `Drops all annotation tables if they exist and recreates them from the
bundled schema definition, then registers the known source datasets
(COCO, VOC2007, OpenImagesV7).

WARNING: any existing annotation data is lost. Use 'annodb backup'
first if you need to keep it.`,
	PreRunE: setupDefaultServices,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(i18n.T("init.cli_starting"))
		if err := db.ResetSchema(); err != nil {
			log.Fatalf("%s", i18n.T("init.cli_error", err))
		}
		if err := importer.SeedDatasets(db.Active()); err != nil {
			log.Fatalf("%s", i18n.T("init.cli_error", err))
		}
		fmt.Println(i18n.T("init.cli_success"))
	},
}
