package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlogLogger_JSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLoggerWithWriter(&buf, slog.LevelInfo, "json").With("executable_id", "exec-1")

	logger.Debug("hidden")
	logger.Info("Job submitted", "job_id", "job-1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "Job submitted", record["msg"])
	require.Equal(t, "exec-1", record["executable_id"])
	require.Equal(t, "job-1", record["job_id"])
}

func TestSlogLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLoggerWithWriter(&buf, slog.LevelDebug, "text")

	logger.Debug("tick", "status", "RUNNING")
	require.Contains(t, buf.String(), "status=RUNNING")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	require.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}
