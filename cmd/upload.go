package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func init() {
	var sessionID string
	uploadCmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document and link it to a session's retrieval context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd.Context(), args[0], sessionID)
		},
	}
	uploadCmd.Flags().StringVar(&sessionID, "session", "", "session id to link the document to (default: first session)")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(ctx context.Context, path, sessionID string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	if err := a.requireLogin(); err != nil {
		return err
	}

	if sessionID != "" {
		if err := a.client.SelectSession(ctx, sessionID); err != nil {
			return err
		}
	}

	return uploadFile(ctx, a, path)
}
