package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/randalmurphal/sqlflow/pkg/sqlflow/checkpoint"
	"github.com/randalmurphal/sqlflow/pkg/sqlflow/session"
	"github.com/randalmurphal/sqlflow/pkg/sqlflow/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator returns a canned query or error and counts calls.
type fakeGenerator struct {
	query string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, _, _, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.query, nil
}

// fakeExecutor returns canned rows or an error and counts calls.
type fakeExecutor struct {
	rows  []map[string]any
	err   error
	calls int
}

func (f *fakeExecutor) Execute(_ context.Context, _ string) ([]map[string]any, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

// fakeAnalyzer returns canned analysis text or an error and counts calls.
type fakeAnalyzer struct {
	text  string
	err   error
	calls int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _, _ string, _ []map[string]any) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// fakeSummarizer records the prompts it was asked to compress.
type fakeSummarizer struct {
	summary string
	err     error
	calls   int
	prompts []string
}

func (f *fakeSummarizer) Summarize(_ context.Context, prompt string, _ int) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

// collectEmitter records every emitted event in order.
type collectEmitter struct {
	mu     sync.Mutex
	events []stream.Event
}

func (c *collectEmitter) Emit(evt stream.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *collectEmitter) Close() {}

func (c *collectEmitter) all() []stream.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]stream.Event(nil), c.events...)
}

// names returns the event names in emission order.
func (c *collectEmitter) names() []string {
	events := c.all()
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Name
	}
	return out
}

// testDeps bundles an engine's fakes and stores for assertions.
type testDeps struct {
	sessions    *session.MemoryStore
	checkpoints *checkpoint.MemoryStore
	gen         *fakeGenerator
	exec        *fakeExecutor
	analyzer    *fakeAnalyzer
	summarizer  *fakeSummarizer
}

// newTestEngine builds an engine on in-memory stores with happy-path fakes.
func newTestEngine(t *testing.T, opts Options) (*Engine, *testDeps) {
	t.Helper()

	deps := &testDeps{
		sessions:    session.NewMemoryStore(),
		checkpoints: checkpoint.NewMemoryStore(),
		gen:         &fakeGenerator{query: "SELECT * FROM users"},
		exec:        &fakeExecutor{rows: []map[string]any{{"id": int64(1), "name": "ada"}}},
		analyzer:    &fakeAnalyzer{text: "One matching user."},
		summarizer:  &fakeSummarizer{summary: "Earlier turns explored the users table."},
	}
	t.Cleanup(func() {
		deps.sessions.Close()
		deps.checkpoints.Close()
	})

	eng, err := New(Config{
		Sessions:    deps.sessions,
		Checkpoints: deps.checkpoints,
		Generator:   deps.gen,
		Executor:    deps.exec,
		Analyzer:    deps.analyzer,
		Summarizer:  deps.summarizer,
		Options:     opts,
	})
	require.NoError(t, err)
	return eng, deps
}

// newTestSession creates and persists a session for the engine under test.
func newTestSession(t *testing.T, eng *Engine) *session.Session {
	t.Helper()
	sess, err := eng.NewSession(context.Background(), "testdb")
	require.NoError(t, err)
	return sess
}

// submitTurns runs n numbered turns and requires each to succeed.
func submitTurns(t *testing.T, eng *Engine, sessionID string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		err := eng.Submit(context.Background(), sessionID, fmt.Sprintf("question %d", i), nil)
		require.NoError(t, err, "turn %d", i)
	}
}

// assertSingleTerminal asserts exactly one terminal event, in last position.
func assertSingleTerminal(t *testing.T, events []stream.Event) {
	t.Helper()
	require.NotEmpty(t, events)

	terminals := 0
	for i, ev := range events {
		if ev.Terminal() {
			terminals++
			assert.Equal(t, len(events)-1, i, "terminal event must be last")
		}
	}
	assert.Equal(t, 1, terminals, "exactly one terminal event per turn")
}
