package chatsync

import (
	"context"
	"fmt"
	"io"
	"time"
)

// LinkStatus enumerates the terminal outcomes of the attachment linking
// workflow.
type LinkStatus string

const (
	// LinkStatusLinked: a ready vector store was bound to the session.
	LinkStatusLinked LinkStatus = "linked"

	// LinkStatusLinkedPending: no store was ready, so the first available
	// one was bound; it may still be processing.
	LinkStatusLinkedPending LinkStatus = "linked_pending"

	// LinkStatusNoVectorStore: both discovery attempts found nothing; the
	// document cannot be used for retrieval yet. Informational, not fatal.
	LinkStatusNoVectorStore LinkStatus = "no_vector_store"

	// LinkStatusNoActiveSession: the workflow had nothing to bind to.
	// Informational, not fatal.
	LinkStatusNoActiveSession LinkStatus = "no_active_session"

	// LinkStatusFailed: the binding request itself failed. The uploaded
	// document is NOT rolled back; upload and linking have independent
	// failure domains.
	LinkStatusFailed LinkStatus = "failed"
)

// LinkResult reports how a linking workflow terminated.
type LinkResult struct {
	Status        LinkStatus
	VectorStoreID string // set for linked and linked_pending
	Message       string // human-readable outcome
}

// Failed reports whether the outcome is an error (as opposed to success or
// an informational no-op).
func (r LinkResult) Failed() bool {
	return r.Status == LinkStatusFailed
}

// linkSessionRequest is the partial update binding a session to a store.
type linkSessionRequest struct {
	VectorStore string `json:"vector_store"`
}

// UploadDocument uploads a file as a document resource, then runs the
// attachment linking workflow against the session that was active when the
// upload completed.
//
// The returned LinkResult is also surfaced through state: a failed link
// records an error, informational outcomes record a notice. The upload
// itself succeeding is independent of the link outcome.
func (c *Client) UploadDocument(ctx context.Context, title, filename string, file io.Reader) (*Document, LinkResult, error) {
	if !c.isLoggedIn() {
		c.setError("Please log in to upload documents.")
		return nil, LinkResult{}, ErrNotLoggedIn
	}

	ctx, span := c.tracer.Start(ctx, "chatsync.upload_document")
	defer span.End()

	c.setError("")

	var doc Document
	fields := map[string]string{"title": title}
	if err := c.backend.Upload(ctx, pathDocuments, fields, "file", filename, file, &doc); err != nil {
		c.setError("Failed to upload document.")
		span.RecordError(err)
		c.logger.Warn("document upload failed", "title", title, "error", err)
		return nil, LinkResult{}, fmt.Errorf("uploading document: %w", err)
	}

	c.logger.Debug("uploaded document", "id", doc.ID, "title", doc.Title)

	c.mu.Lock()
	sessionID := c.activeSessionID
	c.mu.Unlock()

	result := c.linkDocument(ctx, sessionID)
	switch {
	case result.Failed():
		c.setError(result.Message)
	case result.Message != "":
		c.setNotice(result.Message)
	}

	return &doc, result, nil
}

// linkDocument runs the linking workflow for sessionID:
//
//	Discover -> Wait-And-Retry (exactly once) -> Select -> Link
//
// The single bounded retry models the backend's asynchronous default-store
// provisioning; it is deliberately not a polling loop, so no background work
// outlives the user's command. Workflows are serialized per session; a
// second upload for the same session waits for the first to terminate.
func (c *Client) linkDocument(ctx context.Context, sessionID string) LinkResult {
	if sessionID == "" {
		return LinkResult{
			Status:  LinkStatusNoActiveSession,
			Message: "Document uploaded. Select a chat session to use it for retrieval.",
		}
	}

	lk := c.linkLock(sessionID)
	lk.Lock()
	defer lk.Unlock()

	ctx, span := c.tracer.Start(ctx, "chatsync.link_document")
	defer span.End()

	// Discover
	stores := c.fetchVectorStores(ctx)

	// Wait-And-Retry: one bounded wait for backend-side provisioning, then
	// proceed to Select regardless of outcome.
	if len(stores) == 0 {
		c.logger.Debug("no vector stores yet, waiting once",
			"session_id", sessionID, "wait", c.cfg.LinkRetryWait)
		select {
		case <-ctx.Done():
			return LinkResult{Status: LinkStatusFailed, Message: "Vector store discovery canceled."}
		case <-time.After(c.cfg.LinkRetryWait):
		}
		stores = c.fetchVectorStores(ctx)
	}

	// Select
	if len(stores) == 0 {
		return LinkResult{
			Status:  LinkStatusNoVectorStore,
			Message: "Document uploaded, but no vector store exists yet; it cannot be used for retrieval until one is provisioned.",
		}
	}

	chosen := stores[0]
	ready := false
	for _, s := range stores {
		if s.Status == StatusReady {
			chosen = s
			ready = true
			break
		}
	}

	// Link
	var updated Session
	if err := c.backend.Patch(ctx, sessionPath(sessionID), linkSessionRequest{VectorStore: chosen.ID}, &updated); err != nil {
		span.RecordError(err)
		c.logger.Warn("vector store link failed",
			"session_id", sessionID, "vector_store", chosen.ID, "error", err)
		return LinkResult{
			Status:        LinkStatusFailed,
			VectorStoreID: chosen.ID,
			Message:       fmt.Sprintf("Failed to link vector store to session: %v.", err),
		}
	}

	c.logger.Debug("linked vector store",
		"session_id", sessionID, "vector_store", chosen.ID, "ready", ready)

	if !ready {
		return LinkResult{
			Status:        LinkStatusLinkedPending,
			VectorStoreID: chosen.ID,
			Message:       "Document linked to a vector store that is still processing; retrieval may lag briefly.",
		}
	}
	return LinkResult{
		Status:        LinkStatusLinked,
		VectorStoreID: chosen.ID,
		Message:       "Document linked to the session's vector store.",
	}
}

// fetchVectorStores lists the user's vector stores. Discovery failures are
// treated as an empty result: the workflow's retry and empty-list outcomes
// already cover the transient cases, and linking must never abort an upload
// that has already succeeded.
func (c *Client) fetchVectorStores(ctx context.Context) []VectorStore {
	var envelope listEnvelope[VectorStore]
	if err := c.backend.Get(ctx, pathVectorStores, &envelope); err != nil {
		c.logger.Warn("vector store discovery failed", "error", err)
		return nil
	}
	return envelope.Results
}
