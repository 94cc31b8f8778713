package session

import "context"

// Store persists session records, keyed by id and by data-source reference.
// Implementations must be safe for concurrent use across sessions; a single
// session follows single-writer discipline during a turn.
type Store interface {
	// Create stores a new session. Returns ErrExists on id collision.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Session, error)

	// List returns all sessions, most recently updated first.
	List(ctx context.Context) ([]*Session, error)

	// ListByDataSource returns sessions bound to a data source,
	// most recently updated first.
	ListByDataSource(ctx context.Context, dataSource string) ([]*Session, error)

	// Update replaces a stored session. Returns ErrNotFound if absent.
	Update(ctx context.Context, s *Session) error

	// Delete removes a session. Returns nil if absent.
	Delete(ctx context.Context, id string) error

	// Close releases any resources (connections, files).
	Close() error
}
