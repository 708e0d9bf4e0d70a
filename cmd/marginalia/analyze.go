package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/marginalia/pkg/readability"
)

var (
	analyzeFile string
	analyzeJSON bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [id]",
	Short: "Report readability issues",
	Long: `Analyze a stored document, or a plain text file with --file, using the
configured readability rules. Offsets are rune offsets into the plain text.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if (analyzeFile == "") == (len(args) == 0) {
			return fmt.Errorf("pass either a document ID or --file")
		}
		return cobra.MaximumNArgs(1)(cmd, args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		var (
			text  string
			rules readability.Rules
		)
		if analyzeFile != "" {
			data, err := os.ReadFile(analyzeFile)
			if err != nil {
				fatal("Failed to read file", err)
			}
			text = string(data)
			_, cfg, err := resolveWorkspace()
			if err != nil {
				fatal("Failed to resolve document root", err)
			}
			if rules, err = cfg.Rules(); err != nil {
				fatal("Failed to load rules", err)
			}
		} else {
			ws := mustWorkspace()
			defer ws.Close()
			_, d, err := ws.load(context.Background(), args[0])
			if err != nil {
				fatal("Failed to read document", err)
			}
			text = d.PlainText(true).Text
			if rules, err = ws.cfg.Rules(); err != nil {
				fatal("Failed to load rules", err)
			}
		}

		analyzer, err := readability.NewAnalyzer(rules)
		if err != nil {
			fatal("Invalid rules", err)
		}
		issues := analyzer.Analyze(text)

		if analyzeJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(issues); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}
		if len(issues) == 0 {
			fmt.Println("No issues found.")
			return
		}
		runes := []rune(text)
		for _, issue := range issues {
			fmt.Printf("%s: %q\n", issue, string(runes[issue.From:issue.To]))
			if issue.Suggestion != "" {
				fmt.Printf("  try: %s\n", issue.Suggestion)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "Analyze a plain text file instead of a document")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Output in JSON format")
}
