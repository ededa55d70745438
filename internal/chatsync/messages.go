package chatsync

import (
	"context"
	"fmt"
	"time"
)

// sendMessageRequest is the message creation payload.
type sendMessageRequest struct {
	Content string `json:"content"`
}

// loadMessages fetches the message list for sessionID and replaces the
// cache wholesale. Ordering is server-provided and never re-sorted.
//
// An empty sessionID clears the cache synchronously with no network call.
//
// Stale-result discard: each fetch is tagged with the session id it was
// issued for and a monotonically increasing sequence number. The result is
// committed only if, at resolution time, the session is still active AND no
// newer fetch has been issued. The tag comparison substitutes for
// cancellation; a discarded response mutates nothing.
//
// On a non-stale fetch failure the previous messages are kept
// (stale-but-present beats empty) and a session-scoped error is recorded.
func (c *Client) loadMessages(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	if sessionID == "" {
		c.messages = nil
		c.loadingMessages = false
		c.mu.Unlock()
		return nil
	}
	c.fetchSeq++
	seq := c.fetchSeq
	c.loadingMessages = true
	c.lastError = ""
	c.mu.Unlock()

	var envelope listEnvelope[Message]
	err := c.backend.Get(ctx, messagesPath(sessionID), &envelope)

	c.mu.Lock()
	defer c.mu.Unlock()

	if sessionID != c.activeSessionID || seq != c.fetchSeq {
		// Stale: selection moved on or a newer fetch superseded this one.
		// Only the owner of the newest tag may clear the loading flag.
		if seq == c.fetchSeq {
			c.loadingMessages = false
		}
		c.logger.Debug("discarding stale message fetch",
			"session_id", sessionID,
			"active", c.activeSessionID,
			"seq", seq)
		return nil
	}

	c.loadingMessages = false
	if err != nil {
		c.lastError = fmt.Sprintf("Failed to fetch messages for session %s.", sessionID)
		c.logger.Warn("message fetch failed", "session_id", sessionID, "error", err)
		return fmt.Errorf("fetching messages for session %s: %w", sessionID, err)
	}

	c.messages = envelope.Results
	c.logger.Debug("loaded messages", "session_id", sessionID, "count", len(c.messages))
	return nil
}

// RefreshMessages refetches the active session's messages immediately.
// A no-op when no session is active.
func (c *Client) RefreshMessages(ctx context.Context) error {
	c.mu.Lock()
	active := c.activeSessionID
	c.mu.Unlock()

	if active == "" {
		return nil
	}
	return c.loadMessages(ctx, active)
}

// SendMessage posts a user message to the active session.
//
// The cache is deliberately not updated with the echoed message: the backend
// appends assistant and system responses asynchronously, so a single
// delayed refetch (Config.SendRefreshDelay) is scheduled instead. Seeing
// the real persisted state is worth the latency; an immediate refetch would
// likely race the backend's own write.
//
// Returns the created message, or nil with the error recorded in state.
func (c *Client) SendMessage(ctx context.Context, content string) (*Message, error) {
	if !c.isLoggedIn() {
		c.setError("Please log in to send messages.")
		return nil, ErrNotLoggedIn
	}

	c.mu.Lock()
	sessionID := c.activeSessionID
	c.mu.Unlock()
	if sessionID == "" {
		c.setError("Select a chat session before sending a message.")
		return nil, ErrNoActiveSession
	}

	ctx, span := c.tracer.Start(ctx, "chatsync.send_message")
	defer span.End()

	c.setError("")

	var created Message
	if err := c.backend.Post(ctx, messagesPath(sessionID), sendMessageRequest{Content: content}, &created); err != nil {
		c.setError("Failed to send message.")
		span.RecordError(err)
		c.logger.Warn("send failed", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("sending message: %w", err)
	}

	c.scheduleRefresh(sessionID)
	c.logger.Debug("sent message", "session_id", sessionID, "message_id", created.ID)
	return &created, nil
}

// scheduleRefresh arranges a single delayed refetch of sessionID's
// messages. The refetch runs on the client's lifetime context so it
// survives the sending call but not Close, and it fires only if the session
// is still active at that point.
func (c *Client) scheduleRefresh(sessionID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		select {
		case <-c.lifeCtx.Done():
			return
		case <-time.After(c.cfg.SendRefreshDelay):
		}

		c.mu.Lock()
		active := c.activeSessionID
		c.mu.Unlock()
		if active != sessionID {
			c.logger.Debug("skipping scheduled refresh, selection moved",
				"session_id", sessionID, "active", active)
			return
		}

		if err := c.loadMessages(c.lifeCtx, sessionID); err != nil {
			c.logger.Warn("scheduled refresh failed", "session_id", sessionID, "error", err)
		}
	}()
}
