package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_String(t *testing.T) {
	cfg := New(map[string]any{
		"name":   "sqlflow",
		"number": 42,
	})

	assert.Equal(t, "sqlflow", cfg.String("name", "default"))
	assert.Equal(t, "default", cfg.String("missing", "default"))
	assert.Equal(t, "default", cfg.String("number", "default"))
}

func TestConfig_Duration(t *testing.T) {
	cfg := New(map[string]any{
		"str":     "30s",
		"int":     5,
		"float":   1.5,
		"native":  2 * time.Minute,
		"garbage": "not a duration",
	})

	assert.Equal(t, 30*time.Second, cfg.Duration("str", time.Second))
	assert.Equal(t, 5*time.Second, cfg.Duration("int", time.Second))
	assert.Equal(t, 1500*time.Millisecond, cfg.Duration("float", time.Second))
	assert.Equal(t, 2*time.Minute, cfg.Duration("native", time.Second))
	assert.Equal(t, time.Second, cfg.Duration("garbage", time.Second))
	assert.Equal(t, time.Second, cfg.Duration("missing", time.Second))
}

func TestConfig_Bool(t *testing.T) {
	cfg := New(map[string]any{
		"yes":      true,
		"no":       false,
		"str_yes":  "true",
		"str_no":   "0",
		"not_bool": "maybe",
	})

	assert.True(t, cfg.Bool("yes", false))
	assert.False(t, cfg.Bool("no", true))
	assert.True(t, cfg.Bool("str_yes", false))
	assert.False(t, cfg.Bool("str_no", true))
	assert.True(t, cfg.Bool("not_bool", true))
	assert.False(t, cfg.Bool("missing", false))
}

func TestConfig_Int(t *testing.T) {
	cfg := New(map[string]any{
		"int":       42,
		"int64":     int64(43),
		"float":     44.0,
		"frac":      44.5,
		"str":       "45",
		"not_a_num": "abc",
	})

	assert.Equal(t, 42, cfg.Int("int", 0))
	assert.Equal(t, 43, cfg.Int("int64", 0))
	assert.Equal(t, 44, cfg.Int("float", 0))
	assert.Equal(t, 7, cfg.Int("frac", 7)) // fractional part loses precision
	assert.Equal(t, 45, cfg.Int("str", 0))
	assert.Equal(t, 7, cfg.Int("not_a_num", 7))
	assert.Equal(t, 7, cfg.Int("missing", 7))
}

func TestConfig_Float(t *testing.T) {
	cfg := New(map[string]any{
		"float": 1.5,
		"int":   2,
	})

	assert.Equal(t, 1.5, cfg.Float("float", 0))
	assert.Equal(t, 2.0, cfg.Float("int", 0))
	assert.Equal(t, 9.9, cfg.Float("missing", 9.9))
}

func TestConfig_StringSlice(t *testing.T) {
	cfg := New(map[string]any{
		"strings": []string{"a", "b"},
		"anys":    []any{"c", "d"},
		"mixed":   []any{"e", 1},
	})

	assert.Equal(t, []string{"a", "b"}, cfg.StringSlice("strings", nil))
	assert.Equal(t, []string{"c", "d"}, cfg.StringSlice("anys", nil))
	assert.Equal(t, []string{"z"}, cfg.StringSlice("mixed", []string{"z"}))
	assert.Nil(t, cfg.StringSlice("missing", nil))
}

func TestConfig_HasAndAny(t *testing.T) {
	cfg := New(map[string]any{"k": "v"})

	assert.True(t, cfg.Has("k"))
	assert.False(t, cfg.Has("missing"))
	assert.Equal(t, "v", cfg.Any("k", nil))
	assert.Equal(t, "fallback", cfg.Any("missing", "fallback"))
}

func TestConfig_Merge(t *testing.T) {
	base := New(map[string]any{"a": 1, "b": 2})
	overlay := New(map[string]any{"b": 3, "c": 4})

	merged := base.Merge(overlay)
	assert.Equal(t, 1, merged.Int("a", 0))
	assert.Equal(t, 3, merged.Int("b", 0))
	assert.Equal(t, 4, merged.Int("c", 0))

	// Originals are untouched
	assert.Equal(t, 2, base.Int("b", 0))
}

func TestConfig_NilMap(t *testing.T) {
	cfg := New(nil)
	assert.Equal(t, "d", cfg.String("k", "d"))
	assert.NotNil(t, cfg.Raw())
}

func TestFromYAML(t *testing.T) {
	data := []byte(`
recent_window: 5
query_timeout: 45s
tracing: true
models:
  - haiku
  - sonnet
`)
	cfg, err := FromYAML(data)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Int("recent_window", 0))
	assert.Equal(t, 45*time.Second, cfg.Duration("query_timeout", 0))
	assert.True(t, cfg.Bool("tracing", false))
	assert.Equal(t, []string{"haiku", "sonnet"}, cfg.StringSlice("models", nil))
}

func TestFromYAML_Invalid(t *testing.T) {
	_, err := FromYAML([]byte("{invalid: [yaml"))
	assert.Error(t, err)
}

func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{"recent_window": 3, "db_path": "sessions.db"}`))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Int("recent_window", 0))
	assert.Equal(t, "sessions.db", cfg.String("db_path", ""))
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("recent_window: 4"), 0o644))

	cfg, err := FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Int("recent_window", 0))

	t.Run("unsupported extension", func(t *testing.T) {
		badPath := filepath.Join(dir, "cfg.toml")
		require.NoError(t, os.WriteFile(badPath, []byte("x = 1"), 0o644))
		_, err := FromFile(badPath)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := FromFile(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SQLFLOWTEST_RECENT_WINDOW", "5")
	t.Setenv("SQLFLOWTEST_TRACING", "true")
	t.Setenv("UNRELATED_KEY", "ignored")

	cfg := FromEnv("SQLFLOWTEST_")
	assert.Equal(t, 5, cfg.Int("recent_window", 0))
	assert.True(t, cfg.Bool("tracing", false))
	assert.False(t, cfg.Has("key"))
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("SQLFLOWTEST_FROM_FILE=yes\n"), 0o644))

	require.NoError(t, LoadEnv(envPath, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "yes", os.Getenv("SQLFLOWTEST_FROM_FILE"))
	t.Cleanup(func() { os.Unsetenv("SQLFLOWTEST_FROM_FILE") })
}
