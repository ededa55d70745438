package chatsync

import (
	"encoding/json"
	"time"
)

// Message type constants define valid message origins.
const (
	TypeUser      = "user"
	TypeAssistant = "assistant"
	TypeSystem    = "system"
)

// Vector store status vocabulary. The set is backend-defined; StatusReady is
// the only status eligible for linking.
const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusError   = "error"
)

// Session is a server-side conversation thread. The ID is immutable and
// server-assigned; every other field is replaced wholesale on refetch.
type Session struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	LastMessage  *LastMessage `json:"last_message"`
	MessageCount int          `json:"message_count"`
	VectorStore  string       `json:"vector_store,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// LastMessage is the session list's preview of the newest message.
type LastMessage struct {
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Message belongs to exactly one session and is never mutated after
// creation; new content only arrives via a full refetch.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"message_type"`
	Content    string          `json:"content"`
	CreatedAt  time.Time       `json:"created_at"`
	References json.RawMessage `json:"references,omitempty"`
}

// VectorStore is a backend-managed retrieval index. It is created
// asynchronously outside this package's control and becomes ready some time
// after creation.
type VectorStore struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Document is an uploaded file resource.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// SyncState is the read model exposed to presentation code. It is a
// snapshot: mutating it has no effect on the Client.
type SyncState struct {
	IsLoggedIn        bool
	UserID            string
	Sessions          []Session
	ActiveSessionID   string // "" means no active session
	Messages          []Message
	IsLoadingSessions bool
	IsLoadingMessages bool

	// Error is the latest human-readable failure, "" when healthy.
	Error string
	// Notice is the latest informational outcome (e.g. a document was
	// uploaded but no vector store exists yet). Informational outcomes are
	// not errors and never displace one.
	Notice string
}

// listEnvelope is the backend's wrapper for list responses.
type listEnvelope[T any] struct {
	Results []T `json:"results"`
}

// Backend REST paths. The paths are the contract with the backend, not an
// implementation detail.
const (
	pathSessions     = "/api/chat/sessions/"
	pathVectorStores = "/api/vector-stores/"
	pathDocuments    = "/api/documents/"
)

func sessionPath(id string) string {
	return pathSessions + id + "/"
}

func messagesPath(id string) string {
	return pathSessions + id + "/messages/"
}
