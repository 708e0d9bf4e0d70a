package main

import (
	"fmt"

	"github.com/aretw0/marginalia"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of marginalia",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("marginalia version %s\n", marginalia.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
