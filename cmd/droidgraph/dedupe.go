package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var dedupeOutput string

var dedupeCmd = &cobra.Command{
	Use:   "dedupe PACKAGE_LIST",
	Short: "Remove duplicate package names from a scan result",
	Long: `Extract the package-name column of a headered CSV file and write the
unique names, sorted, one per line.`,
	Args: cobra.ExactArgs(1),
	RunE: runDedupe,
}

func init() {
	dedupeCmd.Flags().StringVar(&dedupeOutput, "output", "pkgs_one_manifest_repo", "output file")
}

func runDedupe(cmd *cobra.Command, args []string) error {
	input, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open package list: %w", err)
	}
	defer input.Close()

	reader := csv.NewReader(input)
	reader.FieldsPerRecord = -1

	// Skip the header row.
	if _, err := reader.Read(); err != nil && err != io.EOF {
		return fmt.Errorf("read package list: %w", err)
	}

	total := 0
	unique := make(map[string]struct{})
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read package list: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		total++
		unique[record[0]] = struct{}{}
	}

	logger.Info("Extracting package names")
	logger.Infof("%d packages found.", total)
	logger.Infof("%d packages remaining. %d duplicated packages removed",
		len(unique), total-len(unique))

	packages := make([]string, 0, len(unique))
	for pkg := range unique {
		packages = append(packages, pkg)
	}
	sort.Strings(packages)

	output, err := os.Create(dedupeOutput)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer output.Close()

	for _, pkg := range packages {
		if _, err := fmt.Fprintln(output, pkg); err != nil {
			return err
		}
	}
	return nil
}
