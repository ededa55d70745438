package chatsync

import "errors"

// Sentinel errors for facade commands. Check with errors.Is().
var (
	// ErrNotLoggedIn indicates a command was issued without a resolved
	// identity. Logged-out is a legitimate state, not a failure of the
	// client, but commands cannot proceed in it.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrNoActiveSession indicates a command that needs an active session
	// was issued while none is selected.
	ErrNoActiveSession = errors.New("no active session")

	// ErrClosed indicates the client has been closed.
	ErrClosed = errors.New("client closed")
)
