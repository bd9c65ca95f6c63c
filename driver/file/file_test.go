package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDriverCreate(t *testing.T) {
	dir := t.TempDir()
	f := NewFileDriver(dir, false)
	t.Setenv("FINDORCREATE_LOG_FIELDS", "level,request_id,collection,file")

	err := f.CreateMany(context.Background(), []map[string]any{
		{
			"level":      "INFO",
			"request_id": "req-1",
			"collection": "tests",
			"mode":       "insert_only",
			"is_new":     true,
			"file":       "main.go",
			"line":       12,
			"payload":    []any{map[string]any{"name": "Conan"}, nil},
		},
		{
			"level":      "ERROR",
			"request_id": "req-2",
			"collection": "tests",
			"mode":       "full_upsert",
			"is_new":     false,
			"error":      "boom",
			"file":       "main.go",
			"line":       13,
		},
	})
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "findorcreate.log"))
	require.NoError(t, err)
	out := string(b)

	assert.Contains(t, out, "[INFO][req-1][tests:insert_only is_new=true][main.go:12]\n")
	assert.Contains(t, out, `{"name":"Conan"}`)
	assert.Contains(t, out, "[ERROR][req-2][tests:full_upsert is_new=false][main.go:13]\nerror: boom\n")
	assert.Equal(t, 2, strings.Count(out, "\n\n"))
}

func TestFileDriverRotateDaily(t *testing.T) {
	dir := t.TempDir()
	f := NewFileDriver(filepath.Join(dir, "nested"), true)
	f.now = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }

	require.NoError(t, f.Create(context.Background(), map[string]any{"level": "INFO"}))
	require.NoError(t, f.Create(context.Background(), map[string]any{"level": "INFO"}))

	b, err := os.ReadFile(filepath.Join(dir, "nested", "2026-10-19.log"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(b), "[INFO]"))
	assert.Contains(t, string(b), "[2026-10-19 08:00:00 UTC]")
}

func TestFormatPayload(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", formatPayload(nil))
	assert.Equal(t, "42", formatPayload(42))
	assert.Equal(t, "a\n1", formatPayload([]any{"a", 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}", formatPayload(map[string]any{"a": 1}))
}
