package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BeginTurn creates a fresh TurnState for a new question.
// It copies the session's persisted messages and summary, clears all
// in-flight fields, and marks the turn as processing.
//
// Structural preconditions are checked here, before any pipeline step runs:
// closed sessions reject new turns, and a session must reference a data
// source. A session already processing a turn is rejected to preserve the
// single-writer-per-session discipline.
func BeginTurn(s *Session, question string) (TurnState, error) {
	if s.Closed() {
		return TurnState{}, fmt.Errorf("session %s: %w", s.ID, ErrSessionClosed)
	}
	if s.DataSource == "" {
		return TurnState{}, fmt.Errorf("session %s: %w", s.ID, ErrNoDataSource)
	}
	if s.Status == StatusProcessing {
		return TurnState{}, fmt.Errorf("session %s: %w", s.ID, ErrTurnInFlight)
	}

	return TurnState{
		SessionID:  s.ID,
		DataSource: s.DataSource,
		Messages:   cloneMessages(s.Messages),
		Summary:    s.Summary,
		Question:   question,
		Status:     StatusProcessing,
	}, nil
}

// BuildMessage creates the persisted record for a turn from its in-flight
// fields. Fields whose producing step never ran or errored stay nil, so
// subsequent turns retain visibility into what failed.
func BuildMessage(ts TurnState) Message {
	return Message{
		ID:            uuid.New().String(),
		Role:          RoleAssistant,
		Question:      ts.Question,
		Query:         cloneString(ts.Query),
		ResultsDigest: cloneString(ts.ResultsDigest),
		Analysis:      cloneString(ts.Analysis),
		CreatedAt:     time.Now().UTC(),
	}
}

// CompleteTurn writes a finished turn back onto the session. The turn
// state's message list (already extended with the turn's own message and
// possibly truncated by compression) replaces the session's, the summary is
// carried over, and the status settles to idle or error.
//
// An errored turn still lands in history; the error description is retained
// in session metadata.
func CompleteTurn(s *Session, ts TurnState) {
	s.Messages = cloneMessages(ts.Messages)
	s.Summary = ts.Summary

	if ts.Failed() {
		s.Status = StatusError
		if s.Metadata == nil {
			s.Metadata = make(map[string]string)
		}
		s.Metadata["last_error"] = ts.Error
	} else {
		s.Status = StatusIdle
		delete(s.Metadata, "last_error")
	}

	s.UpdatedAt = time.Now().UTC()
}
