package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	docsource "github.com/aretw0/marginalia/pkg/adapters/lifecycle"
)

var watchCmd = &cobra.Command{
	Use:   "watch [pattern]",
	Short: "Print document changes made on disk",
	Long: `Print create, modify and delete events for documents matching a glob pattern
(default "**") until interrupted. Only the fs adapter supports watching.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pattern := "**"
		if len(args) == 1 {
			pattern = args[0]
		}

		ws := mustWorkspace()
		defer ws.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		src, err := docsource.Watch(ctx, ws.svc, pattern)
		if err != nil {
			fatal("Failed to watch documents", err)
		}
		if err := src.Start(ctx); err != nil {
			fatal("Failed to start watcher", err)
		}

		fmt.Fprintf(os.Stderr, "Watching %s in %s (Ctrl+C to stop)\n", pattern, ws.root)
		for e := range src.Events() {
			fmt.Println(e)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
