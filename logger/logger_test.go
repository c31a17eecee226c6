package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithFieldWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf).WithField("topic", "cars")

	l.Info().Int("new_items", 2).Msg("scan finished")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "cars", entry["topic"])
	assert.Equal(t, float64(2), entry["new_items"])
	assert.Equal(t, "scan finished", entry["message"])
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).WithError(errors.New("boom")).Warn().Msg("failed")

	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).WithFields(Fields{"run_id": "r-1", "url": "https://example.com/cars"}).Info().Msg("scan started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "r-1", entry["run_id"])
	assert.Equal(t, "https://example.com/cars", entry["url"])
}

func TestInitWithLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watcher.log")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_LEVEL", "info")

	Init()
	ForWorker().Info().Msg("hello from test")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
	assert.Contains(t, string(data), `"component":"worker"`)
}
