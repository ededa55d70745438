package chatsync

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testSession(id, title string) Session {
	now := time.Now().UTC()
	return Session{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}
}

func TestLoadSessions_SelectsFirstInitially(t *testing.T) {
	backend := newMockBackend()
	backend.sessions = []Session{testSession("a", "First"), testSession("b", "Second")}

	c := newTestClient(backend, testCreds, Config{})
	defer c.Close()

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	st := c.State()
	if !st.IsLoggedIn {
		t.Fatal("expected logged-in state")
	}
	if len(st.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(st.Sessions))
	}
	if st.ActiveSessionID != "a" {
		t.Errorf("expected first session active, got %q", st.ActiveSessionID)
	}
}

func TestLoadSessions_SelectionInvariant(t *testing.T) {
	tests := []struct {
		name       string
		initial    []Session
		refreshed  []Session
		wantActive string
	}{
		{
			name:       "active survives refresh",
			initial:    []Session{testSession("a", "A"), testSession("b", "B")},
			refreshed:  []Session{testSession("c", "C"), testSession("a", "A")},
			wantActive: "a",
		},
		{
			name:       "active removed falls back to first",
			initial:    []Session{testSession("a", "A"), testSession("b", "B")},
			refreshed:  []Session{testSession("b", "B"), testSession("c", "C")},
			wantActive: "b",
		},
		{
			name:       "empty list clears selection",
			initial:    []Session{testSession("a", "A")},
			refreshed:  nil,
			wantActive: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newMockBackend()
			backend.sessions = tt.initial

			c := newTestClient(backend, testCreds, Config{})
			defer c.Close()

			if err := c.Init(context.Background()); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if got := c.State().ActiveSessionID; got != tt.initial[0].ID {
				t.Fatalf("setup: expected active %q, got %q", tt.initial[0].ID, got)
			}

			backend.mu.Lock()
			backend.sessions = tt.refreshed
			backend.mu.Unlock()

			if err := c.LoadSessions(context.Background()); err != nil {
				t.Fatalf("LoadSessions() error = %v", err)
			}

			if got := c.State().ActiveSessionID; got != tt.wantActive {
				t.Errorf("active = %q, want %q", got, tt.wantActive)
			}
		})
	}
}

func TestLoadSessions_PreservesOrder(t *testing.T) {
	backend := newMockBackend()
	// Deliberately not sorted by anything client-visible.
	backend.sessions = []Session{
		testSession("z", "Zebra"), testSession("a", "Aardvark"), testSession("m", "Middle"),
	}

	c := newTestClient(backend, testCreds, Config{})
	defer c.Close()

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	got := c.State().Sessions
	for i, want := range []string{"z", "a", "m"} {
		if got[i].ID != want {
			t.Errorf("sessions[%d].ID = %q, want %q (server order must be preserved)", i, got[i].ID, want)
		}
	}
}

func TestLoadSessions_FailureKeepsPriorState(t *testing.T) {
	backend := newMockBackend()
	backend.sessions = []Session{testSession("a", "A"), testSession("b", "B")}

	c := newTestClient(backend, testCreds, Config{})
	defer c.Close()

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	backend.mu.Lock()
	backend.getSessionsErr = errors.New("boom")
	backend.mu.Unlock()

	if err := c.LoadSessions(context.Background()); err == nil {
		t.Fatal("expected LoadSessions to fail")
	}

	st := c.State()
	if len(st.Sessions) != 2 {
		t.Errorf("sessions cleared on transient failure: got %d, want 2", len(st.Sessions))
	}
	if st.ActiveSessionID != "a" {
		t.Errorf("selection changed on transient failure: got %q", st.ActiveSessionID)
	}
	if st.Error == "" {
		t.Error("expected a recorded error")
	}
	if st.IsLoadingSessions {
		t.Error("loading flag stuck")
	}
}

func TestCreateSession_DoesNotAutoSelect(t *testing.T) {
	backend := newMockBackend()
	backend.createResult = testSession("new", DefaultSessionTitle)

	c := newTestClient(backend, testCreds, Config{})
	defer c.Close()

	// User with no sessions at all.
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	created, err := c.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if created == nil || created.ID != "new" {
		t.Fatalf("unexpected created session: %+v", created)
	}

	st := c.State()
	if len(st.Sessions) != 1 {
		t.Errorf("expected 1 session after create, got %d", len(st.Sessions))
	}
	if st.ActiveSessionID != "" {
		t.Errorf("creation must not auto-select; active = %q", st.ActiveSessionID)
	}

	// Selection is the caller's responsibility.
	if err := c.SelectSession(context.Background(), created.ID); err != nil {
		t.Fatalf("SelectSession() error = %v", err)
	}
	if got := c.State().ActiveSessionID; got != "new" {
		t.Errorf("active = %q after explicit select, want %q", got, "new")
	}
}

func TestCreateSession_SendsVectorStoreBinding(t *testing.T) {
	backend := newMockBackend()
	backend.createResult = testSession("new", DefaultSessionTitle)

	c := newTestClient(backend, testCreds, Config{})
	defer c.Close()

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if _, err := c.CreateSession(context.Background(), "vs-7"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	req, ok := backend.lastPost.(createSessionRequest)
	if !ok {
		t.Fatalf("unexpected POST body type %T", backend.lastPost)
	}
	if req.Title != DefaultSessionTitle {
		t.Errorf("title = %q, want %q", req.Title, DefaultSessionTitle)
	}
	if req.VectorStore != "vs-7" {
		t.Errorf("vector_store = %q, want %q", req.VectorStore, "vs-7")
	}
}

func TestCreateSession_FailureRecorded(t *testing.T) {
	backend := newMockBackend()
	backend.postErr = errors.New("boom")

	c := newTestClient(backend, testCreds, Config{})
	defer c.Close()

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	created, err := c.CreateSession(context.Background(), "")
	if err == nil {
		t.Fatal("expected CreateSession to fail")
	}
	if created != nil {
		t.Errorf("expected nil session on failure, got %+v", created)
	}
	if c.State().Error == "" {
		t.Error("expected a recorded error")
	}
}

func TestCreateSession_LoggedOut(t *testing.T) {
	backend := newMockBackend()

	c := newTestClient(backend, nil, Config{})
	defer c.Close()

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	_, err := c.CreateSession(context.Background(), "")
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("error = %v, want ErrNotLoggedIn", err)
	}
	if len(backend.postCalls) != 0 {
		t.Errorf("logged-out create must not hit the network, saw %d POSTs", len(backend.postCalls))
	}
}
