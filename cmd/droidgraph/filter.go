package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/droidgraph/droidgraph/internal/playstore"
)

var (
	filterStartDate  string
	filterAllRepos   string
	filterDetailsDir string
	filterOutput     string
)

var filterByDateCmd = &cobra.Command{
	Use:   "filter-by-date",
	Short: "Keep only packages uploaded after a cutoff date",
	Long: `Scan the details directory for apps whose upload date is after the
cutoff, then filter the package,repo_name CSV down to those packages.`,
	RunE: runFilterByDate,
}

func init() {
	filterByDateCmd.Flags().StringVar(&filterStartDate, "start-date", "", "cutoff date, format YYYY-MM-DD")
	filterByDateCmd.Flags().StringVar(&filterAllRepos, "all-repos", "", "headerless package,repo_name CSV")
	filterByDateCmd.Flags().StringVar(&filterDetailsDir, "details-dir", "", "directory containing app-store JSON snapshots")
	filterByDateCmd.Flags().StringVar(&filterOutput, "output", "filtered_pkgs", "output CSV file")
	filterByDateCmd.MarkFlagRequired("start-date")
	filterByDateCmd.MarkFlagRequired("all-repos")
	filterByDateCmd.MarkFlagRequired("details-dir")
}

func runFilterByDate(cmd *cobra.Command, args []string) error {
	startDate, err := time.Parse("2006-01-02", filterStartDate)
	if err != nil {
		return fmt.Errorf("parse start date: %w", err)
	}
	logger.Debugf("Retrieving applications released after %s", startDate.Format("2006-01-02"))

	cutoff := startDate.Unix()
	recent := make(map[string]struct{})
	bar := progressbar.Default(-1, "apps analyzed")

	err = playstore.WalkDetails(filterDetailsDir, func(packageName string, details playstore.Details) error {
		bar.Add(1)
		appDetails := detailsSection(details)
		if appDetails == nil {
			return nil
		}
		uploadDate, err := playstore.ParseUploadDate(appDetails)
		if err != nil {
			return fmt.Errorf("package %s: %w", packageName, err)
		}
		if uploadDate != nil && *uploadDate > cutoff {
			recent[packageName] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Infof("%d packages uploaded after %s", len(recent), filterStartDate)

	input, err := os.Open(filterAllRepos)
	if err != nil {
		return fmt.Errorf("open all-repos file: %w", err)
	}
	defer input.Close()

	output, err := os.Create(filterOutput)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer output.Close()

	reader := csv.NewReader(input)
	reader.FieldsPerRecord = -1
	writer := csv.NewWriter(output)
	kept := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read all-repos file: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		if _, ok := recent[record[0]]; ok {
			if err := writer.Write(record[:2]); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			kept++
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	logger.Infof("Kept %d of the matched rows", kept)
	return nil
}
