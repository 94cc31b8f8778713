// Package checkpoint provides durable turn-state snapshots keyed by session.
//
// At most one live checkpoint exists per session id; saving replaces the
// prior one atomically. A reader either sees the previous checkpoint or the
// new one, never a partial write.
package checkpoint

import (
	"errors"
	"time"
)

// Store persists the latest checkpoint for each session.
// Implementations must be safe for concurrent use across sessions; per-
// session access is single-writer during a turn.
type Store interface {
	// Save stores the checkpoint for a session, replacing any prior one.
	Save(sessionID string, data []byte) error

	// Load retrieves the live checkpoint for a session.
	// Returns ErrNotFound if none exists; absence means "fresh session".
	Load(sessionID string) ([]byte, error)

	// Info returns checkpoint metadata without loading the full state.
	// Returns ErrNotFound if no checkpoint exists.
	Info(sessionID string) (Info, error)

	// Delete removes the checkpoint for a session.
	// Returns nil if none exists.
	Delete(sessionID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides checkpoint metadata without the serialized state.
type Info struct {
	SessionID string
	NodeID    string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates no checkpoint exists for the session.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
