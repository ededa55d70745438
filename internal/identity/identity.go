// Package identity resolves the current user's identity from stored
// credentials.
//
// The synchronization core treats identity as an external accessor: absence
// of a value is the authoritative logged-out state, never an error. The
// accessor must not fail silently into a logged-in state, so malformed
// credential data is reported as an error rather than ignored.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrMalformedCredentials indicates the credentials file exists but
	// cannot be parsed. Callers must treat this as a failure, not as a
	// logged-out state.
	ErrMalformedCredentials = errors.New("malformed credentials file")

	// ErrLockTimeout indicates the credentials file lock could not be
	// acquired in time.
	ErrLockTimeout = errors.New("credentials file lock timeout")
)

// lockRetryInterval is how often flock retries acquiring the shared lock.
const lockRetryInterval = 50 * time.Millisecond

// Credentials identifies an authenticated user against the chat backend.
type Credentials struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
}

// Resolver reports the current user identity.
//
// Resolve returns (nil, nil) when no identity is present - the legitimate
// logged-out state. A non-nil error means the accessor itself failed and the
// caller must not assume either state.
type Resolver interface {
	Resolve(ctx context.Context) (*Credentials, error)
}

// FileResolver reads credentials from a JSON file on disk, the client-side
// counterpart of the browser's session cookie. Reads take a shared flock so
// a concurrent login/logout writing the file is never observed half-written.
type FileResolver struct {
	path   string
	logger *slog.Logger
}

// NewFileResolver creates a resolver reading the given credentials file.
// A nil logger falls back to slog.Default().
func NewFileResolver(path string, logger *slog.Logger) *FileResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileResolver{path: path, logger: logger}
}

// Resolve reads and parses the credentials file.
//
// Returns:
//   - (nil, nil) if the file does not exist or holds no user id (logged out)
//   - (*Credentials, nil) if valid credentials are present
//   - (nil, error) if the file exists but cannot be read or parsed
func (r *FileResolver) Resolve(ctx context.Context) (*Credentials, error) {
	if _, err := os.Stat(r.path); err != nil {
		if os.IsNotExist(err) {
			r.logger.Debug("no credentials file, treating as logged out", "path", r.path)
			return nil, nil
		}
		return nil, fmt.Errorf("stat credentials file: %w", err)
	}

	fl := flock.New(r.path)
	locked, err := fl.TryRLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockTimeout, err)
	}
	if !locked {
		return nil, ErrLockTimeout
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			r.logger.Warn("failed to release credentials lock", "error", err)
		}
	}()

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredentials, err)
	}

	if creds.UserID == "" {
		// An empty record is how logout clears the file.
		return nil, nil
	}

	return &creds, nil
}

// Static is a fixed-value resolver for tests and embedding scenarios.
// A nil Creds value resolves to logged out.
type Static struct {
	Creds *Credentials
}

// Resolve returns the fixed credentials.
func (s Static) Resolve(ctx context.Context) (*Credentials, error) {
	return s.Creds, nil
}
