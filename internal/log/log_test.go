package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"trace":   LevelTrace,
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestConsoleSplit(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, closers, err := setupLogger("debug", "", &stdout, &stderr)
	require.NoError(t, err)
	assert.Empty(t, closers)

	logger.Debug("note on", "note", 60)
	logger.Error("device failed")

	assert.Contains(t, stdout.String(), "note on")
	assert.NotContains(t, stdout.String(), "device failed")
	assert.Contains(t, stderr.String(), "device failed")
	assert.NotContains(t, stderr.String(), "note on")
}

func TestFileLogging(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "midikeys.log")
	logger, closers, err := setupLogger("trace", path, &stdout, &stderr)
	require.NoError(t, err)
	require.Len(t, closers, 1)

	logger.Log(t.Context(), LevelTrace, "raw")
	logger.Info("connected")
	logger.Error("boom")
	for _, c := range closers {
		require.NoError(t, c.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "level=TRACE msg=raw")
	assert.Contains(t, string(data), "connected")
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "boom")
	assert.NotContains(t, stderr.String(), "connected")
}

func TestRawLogger(t *testing.T) {
	var buf bytes.Buffer
	r := &rawLogger{w: &buf, now: func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }}

	r.Log(MIDIIn, []byte{0x90, 0x3c, 0x7f})
	r.Log(DeviceOut, []byte{0x02, 0x01, 0x17})
	r.Log(DeviceOut, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024/01/02 03:04:05.000 MIDI-> 3 bytes: 90 3c 7f", lines[0])
	assert.Equal(t, "2024/01/02 03:04:05.000 ->KBD 3 bytes: 02 01 17", lines[1])

	NewRaw(nil).Log(MIDIIn, []byte{1})
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(t.Context(), slog.LevelError))
}
