package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/droidgraph/droidgraph/internal/csvutil"
	"github.com/droidgraph/droidgraph/internal/forge"
	"github.com/droidgraph/droidgraph/internal/graph"
	"github.com/droidgraph/droidgraph/internal/reconcile"
)

var (
	storeNeo4jURI  string
	storeGitlabURL string
	storeReposDir  string
	storeNeo4jDB   string
)

var storeCmd = &cobra.Command{
	Use:   "store DETAILS_DIR PACKAGE_LIST REPOSITORY_LIST",
	Short: "Load apps, repositories and git history into Neo4j",
	Long: `Populate the graph database from a details directory, a headerless
package,repo_name CSV, and the consolidated repository CSV.

App and GooglePlayPage nodes are created for every known package first.
Each repository row then gets a GitHubRepository node fanned out to its
App nodes, followed by Commit, Contributor, Tag and Branch nodes from
the snapshot forge. FORKS edges are linked in one pass at the end.`,
	Args: cobra.ExactArgs(3),
	RunE: runStore,
}

func init() {
	storeCmd.Flags().StringVar(&storeNeo4jURI, "neo4j-uri", "", "Neo4j bolt URI (overrides config)")
	storeCmd.Flags().StringVar(&storeNeo4jDB, "neo4j-database", "", "Neo4j database name (overrides config)")
	storeCmd.Flags().StringVar(&storeGitlabURL, "gitlab-url", "", "GitLab base URL (overrides config)")
	storeCmd.Flags().StringVar(&storeReposDir, "repos-dir", "", "local path to the mirror's bare repositories (overrides config)")
}

func runStore(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	detailsDir, packageList, repositoryList := args[0], args[1], args[2]

	if storeNeo4jURI != "" {
		cfg.Neo4j.URI = storeNeo4jURI
	}
	if storeNeo4jDB != "" {
		cfg.Neo4j.Database = storeNeo4jDB
	}
	if storeGitlabURL != "" {
		cfg.GitLab.URL = storeGitlabURL
	}
	if storeReposDir != "" {
		cfg.GitLab.ReposDir = storeReposDir
	}

	pool, err := readPool(packageList)
	if err != nil {
		return err
	}
	logger.Infof("Read packages in %d repos from %s", len(pool), packageList)

	rows, err := readRepositoryRows(repositoryList)
	if err != nil {
		return err
	}

	client, err := graph.NewClient(ctx, cfg.Neo4j.URI, cfg.Neo4j.User,
		cfg.Neo4j.Password, cfg.Neo4j.Database, logger)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	fg, err := forge.NewClient(cfg.GitLab.URL, cfg.GitLab.Token)
	if err != nil {
		return err
	}

	loader := graph.NewLoader(client, fg, cfg.GitLab.ReposDir, logger)
	if err := loader.AddAppData(ctx, pool, detailsDir); err != nil {
		return err
	}
	return loader.LoadRepositories(ctx, rows, pool)
}

func readPool(path string) (reconcile.Pool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open package list: %w", err)
	}
	defer file.Close()
	return reconcile.ParseRepoToPackages(file)
}

func readRepositoryRows(path string) ([]csvutil.Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open repository list: %w", err)
	}
	defer file.Close()
	rows, _, err := csvutil.ReadRows(file)
	return rows, err
}
