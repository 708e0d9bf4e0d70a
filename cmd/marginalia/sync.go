package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/marginalia"
	"github.com/spf13/cobra"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize the document root with its remote",
	Long: `Synchronize a git-versioned document root with the configured remote.
It integrates remote changes and pushes local changes.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		root, cfg, err := resolveWorkspace()
		if err != nil {
			fatal("Failed to resolve document root", err)
		}
		opts := append(cfg.Options(), marginalia.WithLogger(slog.Default()))
		if adapter != "" {
			opts = append(opts, marginalia.WithAdapter(adapter))
		}

		fmt.Println("Syncing...")
		if err := marginalia.Sync(root, opts...); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Sync failed: %v\n", err)
			fmt.Println("Tip: Ensure you have a remote configured ('git remote add origin <url>') and you are online.")
			os.Exit(1)
		}

		fmt.Println("Sync completed successfully.")
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
