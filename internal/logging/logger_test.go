package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{"trace", []string{"trace message", "debug message", "info message"}, nil},
		{"debug", []string{"debug message", "info message"}, []string{"trace message"}},
		{"info", []string{"info message", "warn message"}, []string{"debug message"}},
		{"warn", []string{"warn message"}, []string{"info message"}},
		{"error", []string{"error message"}, []string{"warn message"}},
		{"bogus", []string{"info message"}, []string{"debug message"}},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: tt.level, Pretty: boolPtr(false), Output: &buf})

			logger.Trace().Msg("trace message")
			logger.Debug().Msg("debug message")
			logger.Info().Msg("info message")
			logger.Warn().Msg("warn message")
			logger.Error().Msg("error message")

			for _, msg := range tt.visible {
				assert.Contains(t, buf.String(), msg)
			}
			for _, msg := range tt.hidden {
				assert.NotContains(t, buf.String(), msg)
			}
		})
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithComponent(Config{Level: "info", Pretty: boolPtr(false), Output: &buf}, "engine")
	logger.Info().Str("run_id", "r1").Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"component":"engine"`)
	assert.Contains(t, out, `"run_id":"r1"`)
	assert.Contains(t, out, `"message":"hello"`)
}

func TestNew_PrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Pretty: boolPtr(true), Output: &buf})
	logger.Info().Msg("hello")
	assert.NotContains(t, buf.String(), `"message"`)
	assert.Contains(t, buf.String(), "hello")
}

func TestUsePretty(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.False(t, usePretty(nil, &bytes.Buffer{}))
	assert.False(t, usePretty(nil, f), "regular files are not terminals")
	assert.True(t, usePretty(boolPtr(true), f))
	assert.False(t, usePretty(boolPtr(false), os.Stderr))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, ParseLevel("trace"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}
