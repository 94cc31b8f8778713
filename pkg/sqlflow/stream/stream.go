// Package stream defines the client-visible event protocol for a turn.
//
// Every turn produces an ordered sequence of events: zero or more status
// and chunk events followed by exactly one terminal event (done or error).
// Emitters must preserve emission order and must never duplicate events.
package stream

import (
	"encoding/json"
)

// Event names on the wire.
const (
	EventStatus = "status"
	EventChunk  = "chunk"
	EventDone   = "done"
	EventError  = "error"
)

// ChunkType discriminates chunk payloads.
type ChunkType string

// Chunk payload types.
const (
	ChunkQuery    ChunkType = "query"
	ChunkResults  ChunkType = "results"
	ChunkAnalysis ChunkType = "analysis"
	ChunkText     ChunkType = "text"
)

// Event is one client-visible record.
// Name is one of the Event* constants; Data is the matching payload type.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// StatusData is the payload of a status event.
type StatusData struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// ChunkData is the payload of a chunk event.
type ChunkData struct {
	Type    ChunkType `json:"type"`
	Content any       `json:"content"`
}

// DoneData is the payload of the done terminal event.
type DoneData struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// ErrorData is the payload of the error terminal event.
type ErrorData struct {
	Message string `json:"message"`
}

// Status creates a status event.
func Status(step, message string) Event {
	return Event{Name: EventStatus, Data: StatusData{Step: step, Message: message}}
}

// Chunk creates a chunk event.
func Chunk(typ ChunkType, content any) Event {
	return Event{Name: EventChunk, Data: ChunkData{Type: typ, Content: content}}
}

// Done creates the done terminal event.
func Done(sessionID, status string) Event {
	return Event{Name: EventDone, Data: DoneData{SessionID: sessionID, Status: status}}
}

// Error creates the error terminal event.
func Error(message string) Event {
	return Event{Name: EventError, Data: ErrorData{Message: message}}
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Name == EventDone || e.Name == EventError
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(alias(e))
}
