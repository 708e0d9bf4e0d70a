package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/marginalia/pkg/track"
)

var changesJSON bool

var changesCmd = &cobra.Command{
	Use:   "changes [id]",
	Short: "List the tracked changes of a document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		defer ws.Close()

		_, d, err := ws.load(context.Background(), args[0])
		if err != nil {
			fatal("Failed to read document", err)
		}
		changes := track.Changes(d)

		if changesJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(changes); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}

		stats := track.Summarize(d)
		fmt.Printf("%d insertions, %d deletions\n", stats.Insertions, stats.Deletions)
		for i, c := range changes {
			fmt.Printf("%3d  %s\n", i, c)
		}
	},
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.Flags().BoolVar(&changesJSON, "json", false, "Output in JSON format")
}
