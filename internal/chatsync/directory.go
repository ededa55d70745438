package chatsync

import (
	"context"
	"fmt"
)

// DefaultSessionTitle is the title given to newly created sessions.
const DefaultSessionTitle = "New Chat"

// createSessionRequest is the creation payload. VectorStore is omitted when
// no retrieval index is bound at creation time.
type createSessionRequest struct {
	Title       string `json:"title"`
	VectorStore string `json:"vector_store,omitempty"`
}

// LoadSessions fetches the full session list and replaces the directory.
//
// Selection invariant: if the previously active session is still present it
// stays selected; otherwise selection falls back to the first entry, or to
// none when the list is empty. Ordering is server-determined and preserved.
//
// On failure the previous sessions and selection are left untouched - a
// stale-but-present directory beats an empty one - and a session-scoped
// error is recorded and returned.
func (c *Client) LoadSessions(ctx context.Context) error {
	if !c.isLoggedIn() {
		return ErrNotLoggedIn
	}

	ctx, span := c.tracer.Start(ctx, "chatsync.load_sessions")
	defer span.End()

	c.mu.Lock()
	c.loadingSessions = true
	c.lastError = ""
	c.mu.Unlock()

	var envelope listEnvelope[Session]
	err := c.backend.Get(ctx, pathSessions, &envelope)

	c.mu.Lock()
	c.loadingSessions = false
	if err != nil {
		c.lastError = "Failed to fetch chat sessions."
		c.mu.Unlock()
		span.RecordError(err)
		c.logger.Warn("session list fetch failed", "error", err)
		return fmt.Errorf("fetching sessions: %w", err)
	}

	c.sessions = envelope.Results

	prevActive := c.activeSessionID
	newActive := ""
	if len(c.sessions) > 0 {
		newActive = c.sessions[0].ID
		for _, s := range c.sessions {
			if s.ID == prevActive {
				newActive = prevActive
				break
			}
		}
	}
	c.activeSessionID = newActive
	changed := newActive != prevActive
	c.mu.Unlock()

	c.logger.Debug("loaded sessions",
		"count", len(envelope.Results),
		"active", newActive,
		"selection_changed", changed)

	// Selection movement drives the message cache as a downstream effect.
	if changed {
		return c.loadMessages(ctx, newActive)
	}
	return nil
}

// CreateSession creates a new session titled "New Chat", optionally bound to
// a vector store.
//
// The new session is appended to the local directory but NOT selected;
// selection is the caller's responsibility so that commands stay
// side-effect-minimal and composition happens here in the facade.
//
// Returns the created session, or nil with the error recorded in state.
func (c *Client) CreateSession(ctx context.Context, vectorStoreID string) (*Session, error) {
	if !c.isLoggedIn() {
		c.setError("Please log in to create a new chat session.")
		return nil, ErrNotLoggedIn
	}

	ctx, span := c.tracer.Start(ctx, "chatsync.create_session")
	defer span.End()

	c.setError("")

	req := createSessionRequest{Title: DefaultSessionTitle, VectorStore: vectorStoreID}
	var created Session
	if err := c.backend.Post(ctx, pathSessions, req, &created); err != nil {
		c.setError("Failed to create a new chat session.")
		span.RecordError(err)
		c.logger.Warn("session creation failed", "error", err)
		return nil, fmt.Errorf("creating session: %w", err)
	}

	c.mu.Lock()
	c.sessions = append(c.sessions, created)
	c.mu.Unlock()

	c.logger.Debug("created session", "id", created.ID, "vector_store", vectorStoreID)
	return &created, nil
}

// SelectSession makes the given session active. An empty id deselects.
//
// The transition itself is pure state; the message fetch for the new
// selection is triggered as a downstream effect, and any still-in-flight
// fetch for the previous selection is discarded at commit time.
func (c *Client) SelectSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	c.activeSessionID = sessionID
	c.mu.Unlock()

	c.logger.Debug("selected session", "id", sessionID)
	return c.loadMessages(ctx, sessionID)
}
