package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/droidgraph/droidgraph/internal/csvutil"
	"github.com/droidgraph/droidgraph/internal/reconcile"
)

var (
	consolidateOriginal    string
	consolidateImport      string
	consolidateMirrored    string
	consolidatePackageList string
	consolidateOutput      string
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge the three repository CSV sources into one canonical file",
	Long: `Merge the original repository scrape, the forge-import copy and the
mirror-repair log into one canonical row per repository id.

The original file wins conflicting fields since later copies corrupt
non-ASCII text; clone metadata is taken from the import and repair
sources. Package associations are attached by resolved repository name
and consumed, so unmatched leftovers can be reported at the end.`,
	RunE: runConsolidate,
}

func init() {
	consolidateCmd.Flags().StringVar(&consolidateOriginal, "original", "", "repository CSV from the original scrape")
	consolidateCmd.Flags().StringVar(&consolidateImport, "gitlab-import", "", "repository CSV augmented by the GitLab import")
	consolidateCmd.Flags().StringVar(&consolidateMirrored, "mirrored", "", "CSV log of re-mirrored repositories")
	consolidateCmd.Flags().StringVar(&consolidatePackageList, "package-list", "", "headerless package,repo_name CSV")
	consolidateCmd.Flags().StringVar(&consolidateOutput, "output", "consolidated.csv", "output CSV file")
	consolidateCmd.MarkFlagRequired("original")
	consolidateCmd.MarkFlagRequired("gitlab-import")
	consolidateCmd.MarkFlagRequired("mirrored")
	consolidateCmd.MarkFlagRequired("package-list")
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	original, originalHeader, err := readCSVFile(consolidateOriginal)
	if err != nil {
		return err
	}
	gitlabImport, _, err := readCSVFile(consolidateImport)
	if err != nil {
		return err
	}
	mirrored, _, err := readCSVFile(consolidateMirrored)
	if err != nil {
		return err
	}
	pool, err := readPool(consolidatePackageList)
	if err != nil {
		return err
	}

	consolidated := reconcile.Consolidate(original, gitlabImport, mirrored, pool, logger)
	reconcile.ReportUnmatched(pool, logger)

	output, err := os.Create(consolidateOutput)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer output.Close()

	if err := csvutil.WriteRows(output, reconcile.Header(originalHeader), consolidated); err != nil {
		return err
	}
	logger.Infof("Wrote %d consolidated repository rows to %s",
		len(consolidated), consolidateOutput)
	return nil
}

func readCSVFile(path string) ([]csvutil.Row, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return csvutil.ReadRows(file)
}
