// cmd/receiptscrapexter/version.go
package main

import (
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("receiptscrapexter version %s\n", version)
		if verbose {
			cmd.Printf("  built:  %s\n  commit: %s\n", buildTime, gitCommit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
