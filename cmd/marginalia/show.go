package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var showFormat string

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a document",
	Long:  `Print a document as markdown (default), its JSON tree, or plain text.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace()
		defer ws.Close()

		_, d, err := ws.load(context.Background(), args[0])
		if err != nil {
			fatal("Failed to read document", err)
		}

		switch showFormat {
		case "md", "markdown":
			fmt.Print(d.Markdown())
		case "json":
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(d); err != nil {
				fatal("Failed to encode JSON", err)
			}
		case "text":
			fmt.Println(d.PlainText(true).Text)
		default:
			fatal("Invalid format", fmt.Errorf("%q (want md, json or text)", showFormat))
		}
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().StringVarP(&showFormat, "format", "f", "md", "Output format: md, json or text")
}
