// Package session holds the conversational data model: long-lived sessions,
// their per-turn message history, and the transient turn state threaded
// through the pipeline.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a session.
type Status string

// Session lifecycle states. Closed is terminal and rejects new turns.
const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusError      Status = "error"
	StatusClosed     Status = "closed"
)

// Role identifies who a message record speaks for.
type Role string

// Message roles. A persisted turn record carries RoleAssistant; the
// question inside it originated from RoleHuman.
const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Message is the immutable record of one completed turn.
// Nil pointer fields mean the producing step never ran or failed before
// producing output. Ordering is insertion order and is significant.
type Message struct {
	ID            string    `json:"id"`
	Role          Role      `json:"role"`
	Question      string    `json:"question"`
	Query         *string   `json:"query,omitempty"`
	ResultsDigest *string   `json:"results_digest,omitempty"`
	Analysis      *string   `json:"analysis,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Session is a long-lived multi-turn conversation tied to one data source.
// Messages is append-only except for compression, which atomically replaces
// a prefix with an updated Summary.
type Session struct {
	ID         string            `json:"id"`
	DataSource string            `json:"data_source"`
	Messages   []Message         `json:"messages"`
	Summary    string            `json:"summary,omitempty"`
	Status     Status            `json:"status"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// New creates an idle session against the given data source.
func New(dataSource string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         uuid.New().String(),
		DataSource: dataSource,
		Status:     StatusIdle,
		Metadata:   make(map[string]string),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Closed reports whether the session rejects new turns.
func (s *Session) Closed() bool {
	return s.Status == StatusClosed
}

// Close marks the session terminal.
func (s *Session) Close() {
	s.Status = StatusClosed
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy of the session.
// Stores hand out clones so callers can't mutate shared state.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = cloneMessages(s.Messages)
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// cloneMessages deep-copies a message slice, including pointer fields.
func cloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		out[i].Query = cloneString(m.Query)
		out[i].ResultsDigest = cloneString(m.ResultsDigest)
		out[i].Analysis = cloneString(m.Analysis)
	}
	return out
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// StringPtr returns a pointer to s. Convenience for optional fields.
func StringPtr(s string) *string {
	return &s
}
