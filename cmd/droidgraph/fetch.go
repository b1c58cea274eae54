package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/droidgraph/droidgraph/internal/csvutil"
	"github.com/droidgraph/droidgraph/internal/github"
)

var (
	fetchPackageList string
	fetchOutput      string
)

var fetchReposCmd = &cobra.Command{
	Use:   "fetch-repos",
	Short: "Fetch repository metadata from GitHub into the repository CSV",
	Long: `Fetch metadata for every repository named in a headerless
package,repo_name CSV and write the repository metadata CSV consumed
by the consolidate stage. Repositories that no longer exist are marked
not_found; renamed ones record their new name in renamed_to.`,
	RunE: runFetchRepos,
}

func init() {
	fetchReposCmd.Flags().StringVar(&fetchPackageList, "package-list", "", "headerless package,repo_name CSV")
	fetchReposCmd.Flags().StringVar(&fetchOutput, "output", "repo_data.csv", "output CSV file")
	fetchReposCmd.MarkFlagRequired("package-list")
}

func runFetchRepos(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	repos, err := readRepoNames(fetchPackageList)
	if err != nil {
		return err
	}
	logger.Infof("Fetching metadata for %d repositories", len(repos))

	client := github.NewClient(cfg.GitHub.Token, cfg.GitHub.RateLimit)
	bar := progressbar.Default(int64(len(repos)))

	rows := make([]csvutil.Row, 0, len(repos))
	for _, fullName := range repos {
		row, err := client.FetchRepositoryRow(ctx, fullName)
		if err != nil {
			return err
		}
		if row["not_found"] == "TRUE" {
			logger.WithField("repository", fullName).Warn("Repository not found")
		}
		rows = append(rows, row)
		bar.Add(1)
	}

	output, err := os.Create(fetchOutput)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer output.Close()

	if err := csvutil.WriteRows(output, github.MetadataHeader, rows); err != nil {
		return err
	}
	logger.Infof("Wrote %d repository rows to %s", len(rows), fetchOutput)
	return nil
}

// readRepoNames returns the unique repository names of a headerless
// package,repo_name CSV in first-seen order.
func readRepoNames(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open package list: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	seen := make(map[string]struct{})
	var repos []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return repos, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read package list: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		if _, ok := seen[record[1]]; ok {
			continue
		}
		seen[record[1]] = struct{}{}
		repos = append(repos, record[1])
	}
}
