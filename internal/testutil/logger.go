package testutil

import (
	"io"
	"log/slog"
)

// DiscardLogger returns a slog.Logger that discards all output.
// Use in tests to reduce noise; production code should never discard logs.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
