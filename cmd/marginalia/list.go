package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all documents",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		defer ws.Close()

		docs, err := ws.svc.ListDocuments(context.Background())
		if err != nil {
			fatal("Failed to list documents", err)
		}

		if listJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(docs); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}

		for _, d := range docs {
			if d.Title == "" {
				fmt.Println(d.ID)
				continue
			}
			fmt.Printf("%s - %s\n", d.ID, d.Title)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
}
