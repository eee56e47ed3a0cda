package util

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LevelInfo, Format: FormatJSON, Output: &buf})

	logger.Debug("hidden")
	logger.Info("disabled class", "class", "C", "line", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "disabled class", entry["msg"])
	assert.Equal(t, "C", entry["class"])
	assert.EqualValues(t, 3, entry["line"])
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LevelWarn, Format: FormatText, Output: &buf})

	logger.Info("hidden")
	logger.Warn("syntax errors", "file", "a.tsx")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "file=a.tsx")
}

func TestParseLogLevelAndFormat(t *testing.T) {
	level, err := ParseLogLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, level)

	_, err = ParseLogLevel("verbose")
	assert.Error(t, err)

	format, err := ParseLogFormat("text")
	require.NoError(t, err)
	assert.Equal(t, FormatText, format)

	_, err = ParseLogFormat("xml")
	assert.Error(t, err)
}

func TestPoolSizeBounds(t *testing.T) {
	size := GetOptimalPoolSize()
	assert.GreaterOrEqual(t, size, 4)
	assert.LessOrEqual(t, size, 32)
	assert.Equal(t, 7, GetOptimalPoolSizeWithOverride(7))
	assert.Equal(t, size, GetOptimalPoolSizeWithOverride(0))
}
