package session

import "errors"

// Sentinel errors for session operations.
var (
	// ErrSessionClosed indicates a turn was submitted against a closed session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrNoDataSource indicates the session has no data-source reference.
	ErrNoDataSource = errors.New("session has no data source")

	// ErrTurnInFlight indicates the session is already processing a turn.
	ErrTurnInFlight = errors.New("turn already in flight")

	// ErrNotFound indicates the session does not exist in the store.
	ErrNotFound = errors.New("session not found")

	// ErrExists indicates a session with the same id already exists.
	ErrExists = errors.New("session already exists")

	// ErrStoreClosed indicates the session store has been closed.
	ErrStoreClosed = errors.New("session store closed")
)
