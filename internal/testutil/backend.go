// Package testutil provides shared test helpers: a fake chat backend
// serving the REST surface the client consumes, and a discard logger.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pelican0/pelican/internal/chatsync"
)

// Backend is an in-memory fake of the chat backend for integration-style
// tests. It serves the session, message, vector-store and document endpoints
// over httptest, tracks per-endpoint call counts, and lets tests gate
// individual requests to provoke races.
//
// Backend is safe for concurrent use; handlers run on the server's
// goroutines.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	sessions []chatsync.Session
	messages map[string][]chatsync.Message
	linked   map[string]string // session id -> linked vector store id

	// storeBatches scripts successive discovery responses; the last batch
	// repeats once the script is exhausted. Empty means "no stores".
	storeBatches [][]chatsync.VectorStore
	storeCalls   int

	calls    map[string]int
	gates    map[string]chan struct{}
	failures map[string][]failure
}

type failure struct {
	status int
	body   string
}

type listEnvelope struct {
	Results any `json:"results"`
}

// NewBackend creates and starts a fake backend. Callers must Close it.
func NewBackend() *Backend {
	b := &Backend{
		messages: make(map[string][]chatsync.Message),
		linked:   make(map[string]string),
		calls:    make(map[string]int),
		gates:    make(map[string]chan struct{}),
		failures: make(map[string][]failure),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat/sessions/", b.handleSessions)
	mux.HandleFunc("/api/vector-stores/", b.handleVectorStores)
	mux.HandleFunc("/api/documents/", b.handleDocuments)
	b.Server = httptest.NewServer(mux)
	return b
}

// Close shuts the fake backend down.
func (b *Backend) Close() {
	b.Server.Close()
}

// URL returns the backend's base URL.
func (b *Backend) URL() string {
	return b.Server.URL
}

// AddSession registers a session and returns it.
func (b *Backend) AddSession(title string) chatsync.Session {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	s := chatsync.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.sessions = append(b.sessions, s)
	return s
}

// RemoveSession drops a session from the list, simulating server-side
// deletion between refreshes.
func (b *Backend) RemoveSession(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.sessions[:0]
	for _, s := range b.sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	b.sessions = kept
}

// AddMessage appends a message to a session and returns it.
func (b *Backend) AddMessage(sessionID, msgType, content string) chatsync.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := chatsync.Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	b.messages[sessionID] = append(b.messages[sessionID], m)
	return m
}

// SetStoreBatches scripts the vector-store discovery responses. Each call
// to the discovery endpoint consumes one batch; the last batch repeats.
func (b *Backend) SetStoreBatches(batches ...[]chatsync.VectorStore) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.storeBatches = batches
	b.storeCalls = 0
}

// StoreCalls reports how many discovery requests were served.
func (b *Backend) StoreCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.storeCalls
}

// LinkedStore returns the vector store id last bound to the session, or "".
func (b *Backend) LinkedStore(sessionID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.linked[sessionID]
}

// Calls reports how many requests matched the given method and path.
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method+" "+path]
}

// TotalCalls reports the total number of requests served.
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

// Gate makes the next request matching method and path block until the
// returned release function is called.
func (b *Backend) Gate(method, path string) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.gates[method+" "+path] = ch
	b.mu.Unlock()
	return func() { close(ch) }
}

// FailOnce makes the next request matching method and path fail with the
// given status and body.
func (b *Backend) FailOnce(method, path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := method + " " + path
	b.failures[key] = append(b.failures[key], failure{status: status, body: body})
}

// intercept records the call, applies gates and scripted failures.
// Returns true if the request was already answered.
func (b *Backend) intercept(w http.ResponseWriter, r *http.Request) bool {
	key := r.Method + " " + r.URL.Path

	b.mu.Lock()
	b.calls[key]++
	gate := b.gates[key]
	delete(b.gates, key)

	var fail *failure
	if pending := b.failures[key]; len(pending) > 0 {
		fail = &pending[0]
		b.failures[key] = pending[1:]
	}
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}

	if fail != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fail.status)
		fmt.Fprint(w, fail.body)
		return true
	}
	return false
}

func (b *Backend) handleSessions(w http.ResponseWriter, r *http.Request) {
	if b.intercept(w, r) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/chat/sessions/")

	switch {
	case rest == "" && r.Method == http.MethodGet:
		b.mu.Lock()
		sessions := append([]chatsync.Session(nil), b.sessions...)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, listEnvelope{Results: sessions})

	case rest == "" && r.Method == http.MethodPost:
		var req struct {
			Title       string `json:"title"`
			VectorStore string `json:"vector_store"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
			return
		}
		s := b.AddSession(req.Title)
		if req.VectorStore != "" {
			b.mu.Lock()
			b.linked[s.ID] = req.VectorStore
			b.mu.Unlock()
			s.VectorStore = req.VectorStore
		}
		writeJSON(w, http.StatusCreated, s)

	case strings.HasSuffix(rest, "/messages/"):
		sessionID := strings.TrimSuffix(rest, "/messages/")
		b.handleMessages(w, r, sessionID)

	case r.Method == http.MethodPatch:
		sessionID := strings.TrimSuffix(rest, "/")
		var req struct {
			VectorStore string `json:"vector_store"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
			return
		}
		b.mu.Lock()
		b.linked[sessionID] = req.VectorStore
		var session chatsync.Session
		for _, s := range b.sessions {
			if s.ID == sessionID {
				session = s
				session.VectorStore = req.VectorStore
			}
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, session)

	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
	}
}

func (b *Backend) handleMessages(w http.ResponseWriter, r *http.Request, sessionID string) {
	switch r.Method {
	case http.MethodGet:
		b.mu.Lock()
		messages := append([]chatsync.Message(nil), b.messages[sessionID]...)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, listEnvelope{Results: messages})

	case http.MethodPost:
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
			return
		}
		m := b.AddMessage(sessionID, chatsync.TypeUser, req.Content)
		writeJSON(w, http.StatusCreated, m)

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "method not allowed"})
	}
}

func (b *Backend) handleVectorStores(w http.ResponseWriter, r *http.Request) {
	if b.intercept(w, r) {
		return
	}

	b.mu.Lock()
	var batch []chatsync.VectorStore
	if len(b.storeBatches) > 0 {
		idx := b.storeCalls
		if idx >= len(b.storeBatches) {
			idx = len(b.storeBatches) - 1
		}
		batch = b.storeBatches[idx]
	}
	b.storeCalls++
	b.mu.Unlock()

	if batch == nil {
		batch = []chatsync.VectorStore{}
	}
	writeJSON(w, http.StatusOK, listEnvelope{Results: batch})
}

func (b *Backend) handleDocuments(w http.ResponseWriter, r *http.Request) {
	if b.intercept(w, r) {
		return
	}

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "method not allowed"})
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "expected multipart body"})
		return
	}

	doc := chatsync.Document{
		ID:        uuid.NewString(),
		Title:     r.FormValue("title"),
		CreatedAt: time.Now().UTC(),
	}
	writeJSON(w, http.StatusCreated, doc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
