package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf    *bytes.Buffer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}

	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}

	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	enc := json.NewEncoder(h.buf)
	return enc.Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  make([]slog.Attr, len(h.attrs)+len(attrs)),
		groups: h.groups,
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(name string) slog.Handler {
	return &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(h.groups, name),
	}
}

func (h *testHandler) getLastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds session_id, node_id, and attempt", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		enriched := EnrichLogger(logger, "sess-123", "generate_query", 2)
		enriched.Info("test message")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "sess-123", record["session_id"])
		assert.Equal(t, "generate_query", record["node_id"])
		assert.Equal(t, float64(2), record["attempt"]) // JSON decodes ints as float64
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		enriched := EnrichLogger(nil, "sess-123", "generate_query", 1)
		assert.Nil(t, enriched)
	})
}

func TestLogTurnStart(t *testing.T) {
	t.Run("logs session_id at INFO level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogTurnStart(logger, "sess-456")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "INFO", record["level"])
		assert.Equal(t, "turn starting", record["msg"])
		assert.Equal(t, "sess-456", record["session_id"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogTurnStart(nil, "sess-123")
		})
	})
}

func TestLogTurnComplete(t *testing.T) {
	t.Run("logs turn completion with metrics", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogTurnComplete(logger, "sess-789", 123.5, 6)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "INFO", record["level"])
		assert.Equal(t, "turn completed", record["msg"])
		assert.Equal(t, "sess-789", record["session_id"])
		assert.Equal(t, 123.5, record["duration_ms"])
		assert.Equal(t, float64(6), record["steps_executed"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogTurnComplete(nil, "sess-123", 100.0, 3)
		})
	})
}

func TestLogTurnError(t *testing.T) {
	t.Run("logs turn error with context", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)
		testErr := errors.New("connection failed")

		LogTurnError(logger, "sess-err", testErr, 50.0, "execute_query")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "ERROR", record["level"])
		assert.Equal(t, "turn failed", record["msg"])
		assert.Equal(t, "sess-err", record["session_id"])
		assert.Equal(t, "connection failed", record["error"])
		assert.Equal(t, 50.0, record["duration_ms"])
		assert.Equal(t, "execute_query", record["last_node"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogTurnError(nil, "sess", errors.New("err"), 0, "node")
		})
	})
}

func TestLogStepStart(t *testing.T) {
	t.Run("logs at DEBUG level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogStepStart(logger, "build_context")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "step starting", record["msg"])
		assert.Equal(t, "build_context", record["node_id"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogStepStart(nil, "node")
		})
	})
}

func TestLogStepComplete(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogStepComplete(logger, "generate_analysis", 45.7)

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "step completed", record["msg"])
	assert.Equal(t, "generate_analysis", record["node_id"])
	assert.Equal(t, 45.7, record["duration_ms"])
}

func TestLogStepError(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)
	testErr := errors.New("validation failed")

	LogStepError(logger, "execute_query", testErr)

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "step failed", record["msg"])
	assert.Equal(t, "execute_query", record["node_id"])
	assert.Equal(t, "validation failed", record["error"])
}

func TestLogCheckpoint(t *testing.T) {
	t.Run("logs checkpoint size", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogCheckpoint(logger, "append_message", 1024)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "checkpoint saved", record["msg"])
		assert.Equal(t, "append_message", record["node_id"])
		assert.Equal(t, float64(1024), record["size_bytes"])
	})
}

func TestLogCheckpointError(t *testing.T) {
	t.Run("logs at WARN level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)
		testErr := errors.New("disk full")

		LogCheckpointError(logger, "compress", "serialize", testErr)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "checkpoint failed", record["msg"])
		assert.Equal(t, "compress", record["node_id"])
		assert.Equal(t, "serialize", record["operation"])
		assert.Equal(t, "disk full", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogCheckpointError(nil, "node", "op", errors.New("err"))
		})
	})
}

func TestLogCompression(t *testing.T) {
	t.Run("logs folded and kept counts", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogCompression(logger, "sess-1", 3, 2)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "INFO", record["level"])
		assert.Equal(t, "history compressed", record["msg"])
		assert.Equal(t, "sess-1", record["session_id"])
		assert.Equal(t, float64(3), record["messages_folded"])
		assert.Equal(t, float64(2), record["messages_kept"])
	})

	t.Run("skip logs at WARN level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogCompressionSkipped(logger, "sess-1", errors.New("llm timeout"))

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "compression skipped", record["msg"])
		assert.Equal(t, "llm timeout", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogCompression(nil, "sess", 1, 1)
			LogCompressionSkipped(nil, "sess", errors.New("err"))
		})
	})
}

func TestTimedOperation(t *testing.T) {
	t.Run("measures duration", func(t *testing.T) {
		done := TimedOperation()
		time.Sleep(10 * time.Millisecond)
		duration := done()

		assert.GreaterOrEqual(t, duration, 10.0)
		assert.Less(t, duration, 100.0)
	})

	t.Run("can be called multiple times", func(t *testing.T) {
		done := TimedOperation()
		time.Sleep(5 * time.Millisecond)
		d1 := done()
		time.Sleep(5 * time.Millisecond)
		d2 := done()

		assert.Greater(t, d2, d1)
	})
}
