package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}
	sessionsCmd.AddCommand(newSessionsListCmd())
	sessionsCmd.AddCommand(newSessionsNewCmd())
	sessionsCmd.AddCommand(newSessionsSelectCmd())
	rootCmd.AddCommand(sessionsCmd)
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd.Context())
		},
	}
}

func newSessionsNewCmd() *cobra.Command {
	var vectorStoreID string
	c := &cobra.Command{
		Use:   "new",
		Short: "Create a new chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsNew(cmd.Context(), vectorStoreID)
		},
	}
	c.Flags().StringVar(&vectorStoreID, "vector-store", "", "bind the new session to a vector store id")
	return c
}

func newSessionsSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <session-id>",
		Short: "Show a session's message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsSelect(cmd.Context(), args[0])
		},
	}
}

func runSessionsList(ctx context.Context) error {
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

	printSessions(a.client.State())
	return nil
}

func runSessionsNew(ctx context.Context, vectorStoreID string) error {
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

	created, err := a.client.CreateSession(ctx, vectorStoreID)
	if err != nil {
		return err
	}
	fmt.Printf("Created session %q (%s).\n", created.Title, created.ID)
	return nil
}

func runSessionsSelect(ctx context.Context, sessionID string) error {
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

	if err := a.client.SelectSession(ctx, sessionID); err != nil {
		return err
	}
	printHistory(a.client.State().Messages)
	return nil
}
