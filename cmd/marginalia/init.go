package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a document root",
	Long: `Initialize a document root in the current directory (or the configured path).
With the fs adapter this runs 'git init' unless versioning is disabled.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := openWorkspace(true)
		if err != nil {
			fatal("Failed to initialize document root", err)
		}
		defer ws.Close()

		fmt.Println("Initialized marginalia root in", ws.root)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
