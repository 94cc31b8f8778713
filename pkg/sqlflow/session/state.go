package session

// TurnState is the transient execution record for one in-flight turn.
// It is the sole channel between pipeline steps: every step reads and
// writes only TurnState fields, which is what makes a turn checkpointable
// and resumable from the serialized state alone.
//
// TurnState is passed by value through the graph and must round-trip
// through JSON.
type TurnState struct {
	SessionID  string `json:"session_id"`
	DataSource string `json:"data_source"`

	// History as loaded at turn start; compression may truncate it.
	Messages []Message `json:"messages"`
	Summary  string    `json:"summary,omitempty"`

	// In-flight turn fields. Nil until the producing step runs.
	Question      string           `json:"question"`
	Query         *string          `json:"query,omitempty"`
	Results       []map[string]any `json:"results,omitempty"`
	ResultsDigest *string          `json:"results_digest,omitempty"`
	Analysis      *string          `json:"analysis,omitempty"`

	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`

	// Cancelled marks the error as a client cancellation, which skips
	// remaining external calls but still records the turn.
	Cancelled bool `json:"cancelled,omitempty"`

	// Compressed is set when the compressor replaced the summary this turn.
	Compressed bool `json:"compressed,omitempty"`

	// Scratch holds step-to-step strings such as the built context.
	Scratch map[string]string `json:"scratch,omitempty"`
}

// Scratch keys used by the pipeline.
const (
	// ScratchContext is the context string built from summary and recent history.
	ScratchContext = "context"
)

// Failed reports whether a fatal error was recorded for this turn.
func (ts *TurnState) Failed() bool {
	return ts.Error != ""
}

// Fail records a fatal error and flips the turn status.
func (ts *TurnState) Fail(msg string) {
	ts.Error = msg
	ts.Status = StatusError
}

// Cancel records a cancellation reason. Cancelled turns are fatal but are
// still appended to history.
func (ts *TurnState) Cancel(reason string) {
	ts.Cancelled = true
	ts.Fail(reason)
}

// PutScratch stores a scratch value, allocating the map on first use.
func (ts *TurnState) PutScratch(key, value string) {
	if ts.Scratch == nil {
		ts.Scratch = make(map[string]string)
	}
	ts.Scratch[key] = value
}
