package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	buf.Reset()
	return line
}

func TestLogger_ChildFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})

	log.With("stream").WithFields(map[string]interface{}{"visit_id": "v1"}).Info("stream open", "attempt", 2)

	line := decodeLine(t, &buf)
	assert.Equal(t, "stream", line["component"])
	assert.Equal(t, "v1", line["visit_id"])
	assert.Equal(t, float64(2), line["attempt"])
	assert.Equal(t, "stream open", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: ParseLevel("WARN"), Output: &buf, JSON: true})

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.Equal(t, "kept", decodeLine(t, &buf)["message"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel(" debug "))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("loud"))
}
