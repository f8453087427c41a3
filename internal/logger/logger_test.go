package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rag-doc-assistant/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.AppConfig{Environment: "test", LogLevel: "info", LogFormat: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("session created")
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "session created", entry["message"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "test", entry["environment"])
}

func TestNewWritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docchat.log")
	var buf bytes.Buffer
	log, err := New(config.AppConfig{LogLevel: "debug", LogFormat: "text", LogFile: path}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	log.Debug("backend request")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"backend request"`)
	assert.Contains(t, buf.String(), "backend request")
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, level)

	level, err = parseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	_, err = parseLevel("verbose")
	assert.Error(t, err)
}
