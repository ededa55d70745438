// Package cmd implements the pelican command line interface.
//
// All commands are thin wrappers over the chatsync facade; no
// synchronization logic lives here.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pelican",
	Short: "Pelican - chat with your documents from the terminal",
	Long: `Pelican is a terminal client for a document-grounded chat backend.

Running pelican without arguments starts an interactive chat session.
Uploaded documents are linked to the active session's vector store so the
assistant can ground its answers in them.`,
	RunE: runChat,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
