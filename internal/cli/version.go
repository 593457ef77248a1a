// Package cli provides the version command.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the rigger version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rigger version %s\n", Version)
	},
}
