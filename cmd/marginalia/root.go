package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	adapter    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "marginalia",
	Short: "A writing assistant's document engine",
	Long: `Marginalia keeps drafts as structured documents with tracked suggestions,
readability hints, AI rewrites and restorable snapshots.
Documents live as markdown files (optionally versioned with git) or in SQLite.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if !showStats {
			return
		}
		if err := printStats(os.Stderr, registry); err != nil {
			slog.Warn("failed to gather metrics", "error", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: marginalia.yaml or marginalia.toml in the root)")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "Print editing metrics to stderr when done")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "", "Storage adapter: fs or sqlite (overrides the configuration)")
}
