package checkpoint

import (
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is an in-memory checkpoint store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]storedCheckpoint // sessionID -> latest checkpoint
	closed bool
}

// storedCheckpoint holds checkpoint data with metadata for Info().
type storedCheckpoint struct {
	data      []byte
	nodeID    string
	sequence  int
	timestamp time.Time
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]storedCheckpoint),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(sessionID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	// Copy data to avoid retaining caller's slice
	stored := make([]byte, len(data))
	copy(stored, data)

	prev := m.data[sessionID]
	m.data[sessionID] = storedCheckpoint{
		data:      stored,
		nodeID:    peekNodeID(stored),
		sequence:  prev.sequence + 1,
		timestamp: time.Now().UTC(),
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	cp, ok := m.data[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy to prevent modification
	result := make([]byte, len(cp.data))
	copy(result, cp.data)
	return result, nil
}

// Info implements Store.
func (m *MemoryStore) Info(sessionID string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Info{}, ErrStoreClosed
	}

	cp, ok := m.data[sessionID]
	if !ok {
		return Info{}, ErrNotFound
	}

	return Info{
		SessionID: sessionID,
		NodeID:    cp.nodeID,
		Sequence:  cp.sequence,
		Timestamp: cp.timestamp,
		Size:      int64(len(cp.data)),
	}, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, sessionID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of sessions with a live checkpoint.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

// peekNodeID extracts the node id from serialized checkpoint data.
// Returns empty string if the data isn't a checkpoint envelope.
func peekNodeID(data []byte) string {
	var partial struct {
		NodeID string `json:"node_id"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return ""
	}
	return partial.NodeID
}
