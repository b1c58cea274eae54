// droidgraph cross-references Android app-store metadata with
// source-repository metadata and loads the result into a Neo4j graph.
// Each subcommand is one pipeline stage; stages communicate through
// flat CSV/JSON files on disk.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/droidgraph/droidgraph/internal/config"
	"github.com/droidgraph/droidgraph/internal/logging"
)

var (
	// Version is set by build flags.
	Version = "dev"

	cfgFile string
	logFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "droidgraph",
	Short: "ETL pipeline linking Android apps to their source repositories",
	Long: `droidgraph merges app-store snapshots with repository metadata from
three independently produced CSV sources and loads the combined result
into a Neo4j property graph for later querying.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose, logFile)
		if err != nil {
			return err
		}

		cfg, err = config.Load(cfgFile)
		if err != nil {
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: droidgraph.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "duplicate log output into this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(fetchReposCmd)
	rootCmd.AddCommand(matchMetadataCmd)
	rootCmd.AddCommand(filterByDateCmd)
	rootCmd.AddCommand(toMatchCmd)
	rootCmd.AddCommand(dedupeCmd)
}
