package sink

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/Alia5/midikeys/internal/log"
	"github.com/Alia5/midikeys/keyboard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	kb, err := Open(context.Background(), Config{Backend: "log"}, logger, log.NewRaw(nil))
	require.NoError(t, err)

	require.NoError(t, kb.Press(keyboard.KeyLeftShift))
	require.NoError(t, kb.Press(keyboard.KeyT))
	assert.Equal(t, []keyboard.Key{keyboard.KeyLeftShift, keyboard.KeyT}, kb.(*Log).Held())
	require.NoError(t, kb.Release(keyboard.KeyT))
	require.NoError(t, kb.Close())

	assert.Contains(t, buf.String(), "msg=press key=T")
	assert.Contains(t, buf.String(), "closing with keys held")
	assert.Empty(t, kb.(*Log).Held())
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "carrier-pigeon"}, log.Discard(), log.NewRaw(nil))
	assert.ErrorIs(t, err, ErrUnknownSink)
}
