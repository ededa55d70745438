package chatsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pelican0/pelican/internal/identity"
)

// Backend defines the transport operations the synchronization core
// consumes. Following Go best practices: interfaces are defined by the
// consumer, not the provider. internal/api.Client satisfies it.
type Backend interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Upload(ctx context.Context, path string, fields map[string]string, fileField, filename string, file io.Reader, out any) error
	SetToken(token string)
}

// Config holds the synchronization core's timing knobs. Both intervals
// encode assumptions about backend processing latency and must stay
// configurable; see internal/config for the defaults.
type Config struct {
	// SendRefreshDelay is how long to wait after a successful send before
	// refetching the session's messages. The backend generates assistant
	// and system messages asynchronously, so an immediate refetch would
	// race its own write.
	SendRefreshDelay time.Duration

	// LinkRetryWait is the single wait between the two vector-store
	// discovery attempts of the linking workflow.
	LinkRetryWait time.Duration
}

// Client is the synchronization facade: the only entry point presentation
// code may call. It owns SyncState and mutates it exclusively through its
// command handlers and the scheduled refresh callback.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	backend  Backend
	resolver identity.Resolver
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer

	mu                sync.Mutex
	loggedIn          bool
	userID            string
	sessions          []Session
	activeSessionID   string
	messages          []Message
	loadingSessions   bool
	loadingMessages   bool
	lastError         string
	lastNotice        string
	fetchSeq          uint64                 // tag for in-flight message fetches
	linkLocks         map[string]*sync.Mutex // per-session workflow serialization
	closed            bool

	// lifeCtx outlives individual commands; scheduled refreshes run on it
	// so they survive the sending call but not the client.
	lifeCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Client.
//
// Parameters:
//   - backend: transport for the backend REST surface
//   - resolver: identity accessor consulted at Init
//   - cfg: timing configuration (zero values disable the waits, useful in tests)
//   - logger: logger for debugging (nil = slog.Default())
func New(backend Backend, resolver identity.Resolver, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	lifeCtx, cancel := context.WithCancel(context.Background())
	return &Client{
		backend:   backend,
		resolver:  resolver,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer("github.com/pelican0/pelican/internal/chatsync"),
		linkLocks: make(map[string]*sync.Mutex),
		lifeCtx:   lifeCtx,
		cancel:    cancel,
	}
}

// Init resolves identity and performs the initial loads.
//
// If no identity is present, the client enters the logged-out state: session
// and message state is cleared and all further network activity is
// suppressed until Init is called again (e.g. after an external login).
// Identity-accessor failures are returned without assuming either state.
// Returns ErrClosed after Close.
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "chatsync.init")
	defer span.End()

	creds, err := c.resolver.Resolve(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("resolving identity: %w", err)
	}

	if creds == nil {
		c.mu.Lock()
		c.loggedIn = false
		c.userID = ""
		c.sessions = nil
		c.activeSessionID = ""
		c.messages = nil
		c.loadingSessions = false
		c.loadingMessages = false
		c.mu.Unlock()

		c.backend.SetToken("")
		c.logger.Debug("initialized logged out")
		return nil
	}

	c.backend.SetToken(creds.AccessToken)

	c.mu.Lock()
	c.loggedIn = true
	c.userID = creds.UserID
	c.mu.Unlock()

	c.logger.Debug("initialized", "user_id", creds.UserID)
	return c.LoadSessions(ctx)
}

// Close stops scheduled work and waits for it to finish. The client must
// not be used afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// State returns a snapshot of the current synchronization state.
// Slices are copied so callers cannot alias internal state.
func (c *Client) State() SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := SyncState{
		IsLoggedIn:        c.loggedIn,
		UserID:            c.userID,
		ActiveSessionID:   c.activeSessionID,
		IsLoadingSessions: c.loadingSessions,
		IsLoadingMessages: c.loadingMessages,
		Error:             c.lastError,
		Notice:            c.lastNotice,
	}
	if c.sessions != nil {
		st.Sessions = make([]Session, len(c.sessions))
		copy(st.Sessions, c.sessions)
	}
	if c.messages != nil {
		st.Messages = make([]Message, len(c.messages))
		copy(st.Messages, c.messages)
	}
	return st
}

// setError records a human-readable failure for passive display.
func (c *Client) setError(msg string) {
	c.mu.Lock()
	c.lastError = msg
	c.mu.Unlock()
}

// setNotice records an informational outcome. Notices never displace errors.
func (c *Client) setNotice(msg string) {
	c.mu.Lock()
	c.lastNotice = msg
	c.mu.Unlock()
}

// isLoggedIn reports the auth gate state.
func (c *Client) isLoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

// linkLock returns the per-session mutex serializing linking workflows.
// Workflows for distinct sessions interleave freely.
func (c *Client) linkLock(sessionID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lk, ok := c.linkLocks[sessionID]
	if !ok {
		lk = &sync.Mutex{}
		c.linkLocks[sessionID] = lk
	}
	return lk
}
