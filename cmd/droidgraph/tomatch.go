package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	toMatchAllRepos    string
	toMatchReposAtPlay string
	toMatchOutput      string
)

var toMatchCmd = &cobra.Command{
	Use:   "to-match",
	Short: "Join the manifest scan with the app-store package list",
	Long: `For every package found on the app store, collect all repositories
whose manifest scan produced that package, and write a headered
package,all_repos CSV with the repository list joined by semicolons.`,
	RunE: runToMatch,
}

func init() {
	toMatchCmd.Flags().StringVar(&toMatchAllRepos, "all-repos", "", "headerless package,repo_name CSV from the manifest scan")
	toMatchCmd.Flags().StringVar(&toMatchReposAtPlay, "repos-at-play", "", "headerless package,repo_name CSV of packages found on the app store")
	toMatchCmd.Flags().StringVar(&toMatchOutput, "output", "to_match.csv", "output CSV file")
	toMatchCmd.MarkFlagRequired("all-repos")
	toMatchCmd.MarkFlagRequired("repos-at-play")
}

func runToMatch(cmd *cobra.Command, args []string) error {
	allRepos, err := readPairs(toMatchAllRepos)
	if err != nil {
		return err
	}
	onPlay, err := readPairs(toMatchReposAtPlay)
	if err != nil {
		return err
	}

	// Index the manifest scan once so each lookup is constant time.
	reposByPackage := make(map[string][]string)
	for _, pair := range allRepos {
		reposByPackage[pair[0]] = append(reposByPackage[pair[0]], pair[1])
	}

	bar := progressbar.Default(int64(len(onPlay)))
	seen := make(map[string]struct{})
	var packages []string
	for _, pair := range onPlay {
		bar.Add(1)
		pkg := pair[0]
		if _, ok := seen[pkg]; ok {
			continue
		}
		seen[pkg] = struct{}{}
		if _, ok := reposByPackage[pkg]; ok {
			packages = append(packages, pkg)
		}
	}

	output, err := os.Create(toMatchOutput)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer output.Close()

	if _, err := fmt.Fprintln(output, "package,all_repos"); err != nil {
		return err
	}
	for _, pkg := range packages {
		if _, err := fmt.Fprintf(output, "%s,%s\n", pkg,
			strings.Join(reposByPackage[pkg], ";")); err != nil {
			return err
		}
	}
	logger.Infof("Wrote %d packages to %s", len(packages), toMatchOutput)
	return nil
}

// readPairs reads the first two trimmed columns of every row of a
// headerless CSV file.
func readPairs(path string) ([][2]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var pairs [][2]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return pairs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if len(record) < 2 {
			continue
		}
		pairs = append(pairs, [2]string{
			strings.TrimSpace(record[0]),
			strings.TrimSpace(record[1]),
		})
	}
}
