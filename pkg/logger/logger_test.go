package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Output: &buf})

	l.Info().Str("preset", "one-level").Msg("search started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "search started", entry["message"])
	assert.Equal(t, "one-level", entry["preset"])
	assert.Contains(t, entry, "time")
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{"debug", "debug", zerolog.DebugLevel},
		{"info", "info", zerolog.InfoLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"warning alias", "WARNING", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
		{"unknown defaults to info", "verbose", zerolog.InfoLevel},
		{"empty defaults to info", "", zerolog.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevel(tc.level))
		})
	}
}

func TestNew_SetsGlobalLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	l := New(Config{Level: "error", Output: &buf})
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())

	l.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	l.Error().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_PrettyOutput(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	l := New(Config{Level: "debug", Pretty: true, Output: &buf})
	l.Debug().Msg("pretty message")

	assert.Contains(t, buf.String(), "pretty message")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Component(zerolog.New(&buf), "search")
	l.Info().Msg("x")

	assert.Contains(t, buf.String(), `"component":"search"`)
}

func TestSetGlobalLogger(t *testing.T) {
	original := log.Logger
	defer func() { log.Logger = original }()

	var buf bytes.Buffer
	SetGlobalLogger(zerolog.New(&buf))
	log.Info().Msg("global")

	assert.Contains(t, buf.String(), "global")
}
