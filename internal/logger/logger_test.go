package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		level LogLevel
		want  int
	}{
		{"trace sees all", LogLevelTrace, 5},
		{"debug", LogLevelDebug, 4},
		{"info", LogLevelInfo, 3},
		{"warn", LogLevelWarn, 2},
		{"error", LogLevelError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf := &bytes.Buffer{}
			log := NewSlogLogger(buf, tt.level, time.UTC)

			log.Trace("t")
			log.Debug("d")
			log.Info("i")
			log.Warn("w")
			log.Error("e")

			assert.Len(t, decodeLines(t, buf), tt.want)
		})
	}
}

func TestModuleAndFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelDebug, time.UTC).
		Module("detector").
		Module("meteor_echo").
		With(Int("bins", 4096))

	log.Info("event opened", Float64("sn", 1.23456), Duration("row", 21333*time.Microsecond))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "detector.meteor_echo", lines[0]["module"])
	assert.InDelta(t, 4096, lines[0]["bins"], 0)
	assert.InDelta(t, 1.235, lines[0]["sn"], 1e-9)
	assert.Equal(t, "21.333ms", lines[0]["row"])
}

func TestWithDoesNotLeakIntoParent(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	parent := NewSlogLogger(buf, LogLevelInfo, time.UTC)
	_ = parent.With(String("child", "yes"))

	parent.Info("parent")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], "child")
}

func TestTextHandlerFormat(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := &moduleLogger{
		module: "spectral",
		level:  parseLogLevel("info"),
	}
	log.logger = slog.New(newTextHandler(buf, log.level, time.UTC))

	log.Info("pipeline ready", Int("bins", 4096), String("source", "raw input from 'x'"))

	line := buf.String()
	assert.Contains(t, line, "INFO  [spectral] pipeline ready")
	assert.Contains(t, line, "bins=4096")
	assert.Contains(t, line, `source="raw input from 'x'"`)
}

func TestCentralLoggerFileOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "pysdr.log")

	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"canvas": "error"},
	})
	require.NoError(t, err)

	cl.Module("runtime").Debug("started")
	cl.Module("canvas").Info("suppressed")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"module":"runtime"`)
	assert.NotContains(t, string(data), "suppressed")
}

func TestInvalidTimezone(t *testing.T) {
	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}
