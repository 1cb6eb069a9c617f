package keymap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Alia5/midikeys/keyboard"
	"github.com/Alia5/midikeys/keymap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutFileFormats(t *testing.T) {
	for _, format := range []string{"json", "yaml", "toml"} {
		t.Run(format, func(t *testing.T) {
			data, err := keymap.Encode(keymap.Default(), format)
			require.NoError(t, err)

			l, err := keymap.Decode(data, format)
			require.NoError(t, err)
			assert.Equal(t, keymap.Default(), l)

			_, err = keymap.New(l)
			assert.NoError(t, err)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	data := []byte(`{
		"blackModifier": "shift",
		"base": {"low": 60, "high": 64, "keys": ["a", "s", "d"]}
	}`)
	l, err := keymap.Decode(data, "json")
	require.NoError(t, err)
	assert.Equal(t, keyboard.KeyLeftShift, l.BlackModifier)
	assert.Equal(t, []keyboard.Key{keyboard.KeyA, keyboard.KeyS, keyboard.KeyD}, l.Base.Keys)
	assert.False(t, l.Low.Present())

	m, err := keymap.New(l)
	require.NoError(t, err)
	assert.False(t, m.ExperimentalSupported())

	_, err = keymap.Decode([]byte(`{"bogus": 1}`), "json")
	assert.Error(t, err)
	_, err = keymap.Decode([]byte(`{"base": {"low": 60, "high": 64, "keys": ["nope"]}}`), "json")
	assert.Error(t, err)
	_, err = keymap.Decode(data, "ini")
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]string{
		"a.json": "json",
		"a.YAML": "yaml",
		"a.yml":  "yaml",
		"a.toml": "toml",
	} {
		got, err := keymap.FormatFromPath(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := keymap.FormatFromPath("a.txt")
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	data, err := keymap.Encode(keymap.Default(), "yaml")
	require.NoError(t, err)
	path := filepath.Join(dir, "layout.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m, err := keymap.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, keymap.Default(), m.Layout())

	bad := keymap.Default()
	bad.TransposeUp = keyboard.KeyQ
	data, err = keymap.Encode(bad, "toml")
	require.NoError(t, err)
	path = filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	_, err = keymap.LoadFile(path)
	assert.Error(t, err)

	_, err = keymap.LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
