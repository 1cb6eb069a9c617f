package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Alia5/midikeys/internal/midiin"
	"github.com/Alia5/midikeys/keymap"
	"github.com/Alia5/midikeys/scale"
	"github.com/Alia5/midikeys/settings"

	toml "github.com/pelletier/go-toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"
)

func TestRunTemplate(t *testing.T) {
	m := buildMapFromStruct(reflect.TypeOf(Run{}))

	assert.Equal(t, true, m["base"])
	assert.Equal(t, false, m["low"])
	assert.Equal(t, false, m["experimental"])
	assert.Equal(t, "0s", m["tapDelay"])
	assert.Equal(t, "0s", m["quantize"])
	assert.Equal(t, "", m["port"])
	assert.Equal(t, []any{uint64(10)}, m["ignoreChannels"])
	assert.Equal(t, "viiper", m["backend"])

	viiper, ok := m["viiper"].(map[string]any)
	require.True(t, ok, "viiper group is nested")
	assert.Equal(t, "localhost:3242", viiper["addr"])
	assert.Equal(t, "3s", viiper["timeout"])
	assert.Equal(t, uint64(0), viiper["busID"])

	uinput, ok := m["uinput"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/dev/uinput", uinput["path"])
}

func TestRenderTemplate(t *testing.T) {
	for _, format := range []string{"json", "yaml", "toml"} {
		t.Run(format, func(t *testing.T) {
			data, err := renderTemplate(reflect.TypeOf(Run{}), format)
			require.NoError(t, err)

			var back map[string]any
			switch format {
			case "json", "yaml":
				// JSON is a subset of YAML.
				require.NoError(t, yaml.Unmarshal(data, &back))
			case "toml":
				tree, err := toml.LoadBytes(data)
				require.NoError(t, err)
				back = tree.ToMap()
			}
			assert.Equal(t, true, back["base"])
			assert.Contains(t, back, "viiper")
		})
	}

	_, err := renderTemplate(reflect.TypeOf(Run{}), "ini")
	require.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "sub", "config.yaml")
	c := &ConfigInit{Command: "run", Format: "yaml", Output: dest}
	require.NoError(t, c.Run())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "addr: localhost:3242")

	err = c.Run()
	require.ErrorContains(t, err, "destination exists")

	c.Force = true
	require.NoError(t, c.Run())

	require.Error(t, (&ConfigInit{Command: "server", Output: dest}).Run())
}

func TestRunSettings(t *testing.T) {
	r := Run{Base: true, High: true, AutoTranspose: true, TapDelay: -time.Second}
	assert.Equal(t, settings.Settings{
		Ranges:        keymap.Ranges{Base: true, High: true},
		AutoTranspose: true,
	}, r.Settings())

	r = Run{Experimental: true, TapDelay: 20 * time.Millisecond}
	assert.Equal(t, scale.ModeExperimental, r.Settings().Mode())
	assert.Equal(t, 20*time.Millisecond, r.Settings().TapDelay)
}

func TestLoadKeymap(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	km, source, err := loadKeymap("")
	require.NoError(t, err)
	assert.Equal(t, "built-in", source)
	assert.Equal(t, keymap.Default(), km.Layout())

	data, err := keymap.Encode(keymap.Layout{
		Base: keymap.BandLayout{Low: 60, High: 62, Keys: keymap.Default().Base.Keys[:3], Chromatic: true},
	}, "toml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile("layout.toml", data, 0o644))

	km, source, err = loadKeymap("")
	require.NoError(t, err)
	assert.Equal(t, "layout.toml", filepath.Base(source))
	_, ok := km.BandOf(36)
	assert.False(t, ok)

	_, _, err = loadKeymap(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestWriteBands(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeBands(&buf, keymap.Default()))
	out := buf.String()
	assert.Contains(t, out, "C2-C7")
	assert.Contains(t, out, "A0-B1")
	assert.Contains(t, out, "C#7-C8")
	assert.Contains(t, out, "chromatic")
	assert.Contains(t, out, "black modifier: LeftShift")
	assert.Contains(t, out, "transpose up: Up")
}

func TestWriteNotes(t *testing.T) {
	km, err := keymap.New(keymap.Default())
	require.NoError(t, err)

	lines := func(mode scale.Mode) map[string]string {
		var buf bytes.Buffer
		require.NoError(t, writeNotes(&buf, km, mode))
		out := map[string]string{}
		for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n")[1:] {
			fields := strings.Fields(l)
			out[fields[0]] = strings.Join(fields[2:], " ")
		}
		return out
	}

	normal := lines(scale.ModeNormal)
	assert.Len(t, normal, 88)
	assert.Equal(t, "hold T", normal["C4(60)"])
	assert.Equal(t, "hold LeftShift+T", normal["C#4(61)"])
	assert.Equal(t, "hold LeftCtrl+1", normal["A0(21)"])
	assert.Equal(t, "hold LeftCtrl+J", normal["C8(108)"])

	exp := lines(scale.ModeExperimental)
	assert.Equal(t, "tap Up, hold T, tap Down", exp["C#4(61)"])
	assert.Equal(t, "hold T", exp["C4(60)"])
}

func TestWritePorts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writePorts(&buf, nil))
	assert.Equal(t, "no MIDI input ports found\n", buf.String())

	buf.Reset()
	require.NoError(t, writePorts(&buf, []midiin.Port{{Number: 0, Name: "Midi Through"}, {Number: 1, Name: "Digital Piano"}}))
	assert.Contains(t, buf.String(), "NUMBER  NAME")
	assert.Contains(t, buf.String(), "1       Digital Piano")
}
