package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/droidgraph/droidgraph/internal/playstore"
)

var (
	metadataPackageList string
	metadataDetailsDir  string
	metadataOutput      string
)

var matchMetadataCmd = &cobra.Command{
	Use:   "match-metadata",
	Short: "Write a JSON summary of matched packages and their repositories",
	Long: `Read the matched package,repo_name CSV, look up each package's
app-store snapshot in the details directory, and write a JSON array of
merged package+repository summary objects.`,
	RunE: runMatchMetadata,
}

// appSummary is one merged package+repository entry of the output.
type appSummary struct {
	Package           string   `json:"package"`
	Name              string   `json:"name"`
	Summary           string   `json:"summary"`
	LastAddedOn       string   `json:"last_added_on"`
	LastVersionNumber *float64 `json:"last_version_number"`
	LastVersionName   string   `json:"last_version_name"`
	SourceRepo        string   `json:"source_repo"`
}

func init() {
	matchMetadataCmd.Flags().StringVar(&metadataPackageList, "package-list", "", "headerless package,repo_name CSV from the match process")
	matchMetadataCmd.Flags().StringVar(&metadataDetailsDir, "details-dir", "", "directory containing app-store JSON snapshots")
	matchMetadataCmd.Flags().StringVar(&metadataOutput, "output", "new_apps.json", "output JSON file")
	matchMetadataCmd.MarkFlagRequired("package-list")
	matchMetadataCmd.MarkFlagRequired("details-dir")
}

func runMatchMetadata(cmd *cobra.Command, args []string) error {
	matched, err := readMatchedRepos(metadataPackageList)
	if err != nil {
		return err
	}

	bar := progressbar.Default(int64(len(matched)))
	found := 0
	var result []appSummary

	err = playstore.WalkDetails(metadataDetailsDir, func(packageName string, details playstore.Details) error {
		repo, ok := matched[packageName]
		if !ok {
			return nil
		}
		found++
		bar.Add(1)

		summary, err := summarize(packageName, repo, details)
		if err != nil {
			logger.WithField("package", packageName).WithError(err).
				Warn("Impossible to retrieve details from package")
			return nil
		}
		result = append(result, summary)
		return nil
	})
	if err != nil {
		return err
	}
	if found < len(matched) {
		logger.Warnf("Details missing for %d of %d matched packages",
			len(matched)-found, len(matched))
	}

	output, err := os.Create(metadataOutput)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer output.Close()

	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("write summaries: %w", err)
	}
	logger.Infof("Wrote %d app summaries to %s", len(result), metadataOutput)
	return nil
}

func summarize(packageName, repo string, details playstore.Details) (appSummary, error) {
	appDetails := detailsSection(details)
	if appDetails == nil {
		return appSummary{}, fmt.Errorf("snapshot has no appDetails section")
	}

	uploadDate, err := playstore.ParseUploadDate(appDetails)
	if err != nil {
		return appSummary{}, err
	}
	summary := appSummary{
		Package:    packageName,
		SourceRepo: "https://github.com/" + repo,
	}
	if version, ok := appDetails["versionString"].(string); ok {
		summary.LastVersionName = version
	}
	if title, ok := details["title"].(string); ok {
		summary.Name = title
	}
	if promo, ok := details["promotionalDescription"].(string); ok {
		summary.Summary = promo
	}
	if code, ok := appDetails["versionCode"].(float64); ok {
		summary.LastVersionNumber = &code
	}
	if uploadDate != nil {
		summary.LastAddedOn = time.Unix(*uploadDate, 0).UTC().Format("2006-01-02")
	}
	return summary, nil
}

func detailsSection(details playstore.Details) playstore.Details {
	inner, ok := details["details"].(map[string]any)
	if !ok {
		return nil
	}
	appDetails, ok := inner["appDetails"].(map[string]any)
	if !ok {
		return nil
	}
	return playstore.Details(appDetails)
}

// readMatchedRepos maps package names to the repository they were
// matched with, from a headerless CSV.
func readMatchedRepos(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open package list: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	matched := make(map[string]string)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return matched, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read package list: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		matched[strings.TrimSpace(record[0])] = strings.TrimSpace(record[1])
	}
}
