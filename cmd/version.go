package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set via -ldflags at build time.
var version = "dev"

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the pelican version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("pelican", version)
		},
	})
}
