package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pelican0/pelican/internal/chatsync"
)

// runChat starts the interactive chat loop.
func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
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

	st := a.client.State()
	if st.ActiveSessionID == "" {
		fmt.Println("No sessions yet. Creating one.")
		created, err := a.client.CreateSession(ctx, "")
		if err != nil {
			return err
		}
		if err := a.client.SelectSession(ctx, created.ID); err != nil {
			return err
		}
	}

	printHistory(a.client.State().Messages)
	fmt.Println(`Type a message, or /sessions, /switch <n>, /new, /upload <file>, /quit.`)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := handleCommand(ctx, a, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
			if done {
				return nil
			}
			continue
		}

		if err := sendAndWait(ctx, a, line); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
}

// handleCommand dispatches a /command. Returns done=true for /quit.
func handleCommand(ctx context.Context, a *app, line string) (done bool, err error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/sessions":
		if err := a.client.LoadSessions(ctx); err != nil {
			return false, err
		}
		printSessions(a.client.State())
		return false, nil

	case "/new":
		created, err := a.client.CreateSession(ctx, "")
		if err != nil {
			return false, err
		}
		if err := a.client.SelectSession(ctx, created.ID); err != nil {
			return false, err
		}
		fmt.Printf("Started %q.\n", created.Title)
		return false, nil

	case "/switch":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /switch <n>")
		}
		st := a.client.State()
		var idx int
		if _, err := fmt.Sscanf(fields[1], "%d", &idx); err != nil || idx < 1 || idx > len(st.Sessions) {
			return false, fmt.Errorf("no session %q; run /sessions", fields[1])
		}
		target := st.Sessions[idx-1]
		if err := a.client.SelectSession(ctx, target.ID); err != nil {
			return false, err
		}
		printHistory(a.client.State().Messages)
		return false, nil

	case "/upload":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /upload <file>")
		}
		return false, uploadFile(ctx, a, fields[1])

	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
}

// sendAndWait posts a message and waits for the delayed refetch to surface
// the backend's response.
func sendAndWait(ctx context.Context, a *app, content string) error {
	before := len(a.client.State().Messages)

	if _, err := a.client.SendMessage(ctx, content); err != nil {
		return err
	}

	// The core schedules its own refetch after the configured delay; poll
	// the snapshot until it lands or we give up.
	deadline := time.Now().Add(a.cfg.SendRefreshDelay() + 15*time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(200 * time.Millisecond)
		st := a.client.State()
		if len(st.Messages) > before {
			printHistory(st.Messages[before:])
			return nil
		}
		if st.Error != "" {
			return fmt.Errorf("%s", st.Error)
		}
	}

	fmt.Println("(no response yet; it will appear on the next refresh)")
	return nil
}

// uploadFile uploads a document and reports the linking outcome.
func uploadFile(ctx context.Context, a *app, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	doc, link, err := a.client.UploadDocument(ctx, name, name, f)
	if err != nil {
		return err
	}

	fmt.Printf("Uploaded %q.\n", doc.Title)
	if link.Message != "" {
		fmt.Println(link.Message)
	}
	return nil
}

func printSessions(st chatsync.SyncState) {
	if len(st.Sessions) == 0 {
		fmt.Println("No sessions.")
		return
	}
	for i, s := range st.Sessions {
		marker := " "
		if s.ID == st.ActiveSessionID {
			marker = "*"
		}
		fmt.Printf("%s %2d. %s (%d messages, updated %s)\n",
			marker, i+1, s.Title, s.MessageCount, formatTime(s.UpdatedAt))
	}
}

func printHistory(messages []chatsync.Message) {
	for _, m := range messages {
		role := "You"
		switch m.Type {
		case chatsync.TypeAssistant:
			role = "Assistant"
		case chatsync.TypeSystem:
			role = "System"
		}
		fmt.Printf("%s> %s\n\n", role, m.Content)
	}
}

// formatTime formats time in a human-readable format.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
