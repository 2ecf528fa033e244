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

// newImportCmd builds the 'import' command tree with one subcommand per
// supported source format. Each subcommand takes --dir to point at the
// dataset root; the configured default directory is used when the flag
// is omitted.
func newImportCmd() *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import annotations from a source dataset",
		Long: `Imports annotation metadata from a source dataset into the unified
schema. Bounding boxes are normalized to (xmin, ymin, width, height)
during import. Malformed records are skipped with a warning and
reported in the summary; they never abort the run.`,
	}

	cocoCmd := &cobra.Command{
		Use:     "coco",
		Short:   "Import COCO instances JSON (train and val splits)",
		PreRunE: setupDefaultServices,
		Run: func(cmd *cobra.Command, args []string) {
			dir := importDir(cmd, appConfig.Datasets.CocoDir)
			runImport(func() (importer.Result, error) {
				return importer.ImportCOCO(db.Active(), dir)
			})
		},
	}
	cocoCmd.Flags().String("dir", "", "Directory containing the COCO instances JSON files")

	vocCmd := &cobra.Command{
		Use:     "voc",
		Short:   "Import PASCAL VOC XML annotations",
		PreRunE: setupDefaultServices,
		Run: func(cmd *cobra.Command, args []string) {
			dir := importDir(cmd, appConfig.Datasets.VocDir)
			runImport(func() (importer.Result, error) {
				return importer.ImportVOC(db.Active(), dir)
			})
		},
	}
	vocCmd.Flags().String("dir", "", "VOC dataset root (holds Annotations/, JPEGImages/, ImageSets/)")

	oiCmd := &cobra.Command{
		Use:     "openimages",
		Short:   "Import OpenImages boxable CSV annotations",
		PreRunE: setupDefaultServices,
		Run: func(cmd *cobra.Command, args []string) {
			dir := importDir(cmd, appConfig.Datasets.OpenImagesDir)
			limit, _ := cmd.Flags().GetInt("limit")
			if !cmd.Flags().Changed("limit") {
				limit = appConfig.Datasets.OpenImagesLimit
			}
			runImport(func() (importer.Result, error) {
				return importer.ImportOpenImages(db.Active(), dir, limit)
			})
		},
	}
	oiCmd.Flags().String("dir", "", "Directory containing the OpenImages CSV files")
	oiCmd.Flags().Int("limit", 0, "Maximum images per split (0 = no limit)")

	for _, sub := range []*cobra.Command{cocoCmd, vocCmd, oiCmd} {
		applyDefaultFlags(sub)
		importCmd.AddCommand(sub)
	}

	return importCmd
}

func importDir(cmd *cobra.Command, fallback string) string {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = fallback
	}
	if dir == "" {
		log.Fatalf("no dataset directory given; pass --dir or set it in annodb.yaml")
	}
	return dir
}

func runImport(run func() (importer.Result, error)) {
	res, err := run()
	if err != nil {
		log.Fatalf("%s", i18n.T("import.cli_error_run", err))
	}
	fmt.Printf("%s\n", i18n.T("import.cli_summary",
		res.Images, res.Categories, res.Annotations, res.Segmentations, res.Skipped))
}
