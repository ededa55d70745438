package chatsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/pelican0/pelican/internal/identity"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockBackend implements Backend for testing.
type mockBackend struct {
	mu sync.Mutex

	// Served data
	sessions          []Session
	messagesBySession map[string][]Message
	storeBatches      [][]VectorStore // successive discovery responses; last repeats
	createResult      Session
	sendResult        Message
	patchResult       Session
	uploadResult      Document

	// Error configuration
	getSessionsErr error
	getMessagesErr error
	postErr        error
	patchErr       error
	uploadErr      error

	// Call tracking
	getCalls    []string
	postCalls   []string
	patchCalls  []string
	uploadCalls int
	storeCalls  int
	lastToken   string
	tokenCalls  int
	lastPost    any
	lastPatch   any

	// gates block a GET for the given path until the channel is closed
	gates map[string]chan struct{}

	// onStoreFetch runs inside vector-store discovery, for serialization
	// checks
	onStoreFetch func()
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		messagesBySession: make(map[string][]Message),
		gates:             make(map[string]chan struct{}),
	}
}

// gate makes the next GET for path block until release is called.
func (m *mockBackend) gate(path string) (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.gates[path] = ch
	m.mu.Unlock()
	return func() { close(ch) }
}

func (m *mockBackend) getCallCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.getCalls {
		if p == path {
			n++
		}
	}
	return n
}

func (m *mockBackend) Get(ctx context.Context, path string, out any) error {
	m.mu.Lock()
	m.getCalls = append(m.getCalls, path)
	gate := m.gates[path]
	delete(m.gates, path)
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	switch v := out.(type) {
	case *listEnvelope[Session]:
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.getSessionsErr != nil {
			return m.getSessionsErr
		}
		v.Results = append([]Session(nil), m.sessions...)
		return nil

	case *listEnvelope[Message]:
		sessionID := strings.TrimSuffix(strings.TrimPrefix(path, pathSessions), "/messages/")
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.getMessagesErr != nil {
			return m.getMessagesErr
		}
		v.Results = append([]Message(nil), m.messagesBySession[sessionID]...)
		return nil

	case *listEnvelope[VectorStore]:
		if m.onStoreFetch != nil {
			m.onStoreFetch()
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if len(m.storeBatches) > 0 {
			idx := m.storeCalls
			if idx >= len(m.storeBatches) {
				idx = len(m.storeBatches) - 1
			}
			v.Results = append([]VectorStore(nil), m.storeBatches[idx]...)
		}
		m.storeCalls++
		return nil

	default:
		return fmt.Errorf("mockBackend: unexpected GET target %T", out)
	}
}

func (m *mockBackend) Post(ctx context.Context, path string, body, out any) error {
	m.mu.Lock()
	m.postCalls = append(m.postCalls, path)
	m.lastPost = body
	err := m.postErr
	m.mu.Unlock()
	if err != nil {
		return err
	}

	switch v := out.(type) {
	case *Session:
		*v = m.createResult
	case *Message:
		*v = m.sendResult
	}
	return nil
}

func (m *mockBackend) Patch(ctx context.Context, path string, body, out any) error {
	m.mu.Lock()
	m.patchCalls = append(m.patchCalls, path)
	m.lastPatch = body
	err := m.patchErr
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if v, ok := out.(*Session); ok {
		*v = m.patchResult
	}
	return nil
}

func (m *mockBackend) Upload(ctx context.Context, path string, fields map[string]string, fileField, filename string, file io.Reader, out any) error {
	m.mu.Lock()
	m.uploadCalls++
	err := m.uploadErr
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if v, ok := out.(*Document); ok {
		*v = m.uploadResult
	}
	return nil
}

func (m *mockBackend) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastToken = token
	m.tokenCalls++
}

// ============================================================================
// Test Helpers
// ============================================================================

var testCreds = &identity.Credentials{UserID: "user-1", AccessToken: "token-1"}

// newTestClient builds a client over the mock backend with waits collapsed
// to near zero. Callers own Close.
func newTestClient(backend *mockBackend, creds *identity.Credentials, cfg Config) *Client {
	// testutil.DiscardLogger would import-cycle back into this package.
	return New(backend, identity.Static{Creds: creds}, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}
