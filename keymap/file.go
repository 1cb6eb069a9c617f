package keymap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Alia5/midikeys/keyboard"
	"github.com/Alia5/midikeys/scale"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

// File is the on-disk form of a Layout. Keys are written by name, see
// keyboard.ParseKey.
type File struct {
	BlackModifier string   `json:"blackModifier" yaml:"blackModifier" toml:"blackModifier"`
	TransposeUp   string   `json:"transposeUp,omitempty" yaml:"transposeUp,omitempty" toml:"transposeUp,omitempty"`
	TransposeDown string   `json:"transposeDown,omitempty" yaml:"transposeDown,omitempty" toml:"transposeDown,omitempty"`
	Base          BandFile `json:"base" yaml:"base" toml:"base"`
	Low           BandFile `json:"low" yaml:"low" toml:"low"`
	High          BandFile `json:"high" yaml:"high" toml:"high"`
}

// BandFile is the on-disk form of a BandLayout. An empty key list leaves the
// band unconfigured.
type BandFile struct {
	Low       int      `json:"low" yaml:"low" toml:"low"`
	High      int      `json:"high" yaml:"high" toml:"high"`
	Modifier  string   `json:"modifier,omitempty" yaml:"modifier,omitempty" toml:"modifier,omitempty"`
	Keys      []string `json:"keys" yaml:"keys" toml:"keys"`
	Chromatic bool     `json:"chromatic" yaml:"chromatic" toml:"chromatic"`
}

// ToFile converts l into its on-disk form.
func (l Layout) ToFile() File {
	return File{
		BlackModifier: keyName(l.BlackModifier),
		TransposeUp:   keyName(l.TransposeUp),
		TransposeDown: keyName(l.TransposeDown),
		Base:          bandToFile(l.Base),
		Low:           bandToFile(l.Low),
		High:          bandToFile(l.High),
	}
}

func keyName(k keyboard.Key) string {
	if k == keyboard.KeyNone {
		return ""
	}
	return k.String()
}

func bandToFile(b BandLayout) BandFile {
	names := make([]string, len(b.Keys))
	for i, k := range b.Keys {
		names[i] = k.String()
	}
	return BandFile{
		Low:       int(b.Low),
		High:      int(b.High),
		Modifier:  keyName(b.Modifier),
		Keys:      names,
		Chromatic: b.Chromatic,
	}
}

// Layout converts the file form into a Layout. The result still has to go
// through New to be validated.
func (f File) Layout() (Layout, error) {
	var l Layout
	var err error
	if l.BlackModifier, err = optionalKey(f.BlackModifier); err != nil {
		return Layout{}, fmt.Errorf("blackModifier: %w", err)
	}
	if l.TransposeUp, err = optionalKey(f.TransposeUp); err != nil {
		return Layout{}, fmt.Errorf("transposeUp: %w", err)
	}
	if l.TransposeDown, err = optionalKey(f.TransposeDown); err != nil {
		return Layout{}, fmt.Errorf("transposeDown: %w", err)
	}
	if l.Base, err = f.Base.band(); err != nil {
		return Layout{}, fmt.Errorf("base: %w", err)
	}
	if l.Low, err = f.Low.band(); err != nil {
		return Layout{}, fmt.Errorf("low: %w", err)
	}
	if l.High, err = f.High.band(); err != nil {
		return Layout{}, fmt.Errorf("high: %w", err)
	}
	return l, nil
}

func optionalKey(name string) (keyboard.Key, error) {
	if strings.TrimSpace(name) == "" {
		return keyboard.KeyNone, nil
	}
	return keyboard.ParseKey(name)
}

func (b BandFile) band() (BandLayout, error) {
	if len(b.Keys) == 0 {
		return BandLayout{}, nil
	}
	if b.Low < 0 || b.Low > int(scale.MaxNote) || b.High < 0 || b.High > int(scale.MaxNote) {
		return BandLayout{}, fmt.Errorf("bounds %d-%d outside MIDI range", b.Low, b.High)
	}
	mod, err := optionalKey(b.Modifier)
	if err != nil {
		return BandLayout{}, fmt.Errorf("modifier: %w", err)
	}
	keys, err := keyboard.ParseKeys(b.Keys)
	if err != nil {
		return BandLayout{}, err
	}
	return BandLayout{
		Low:       scale.Note(b.Low),
		High:      scale.Note(b.High),
		Modifier:  mod,
		Keys:      keys,
		Chromatic: b.Chromatic,
	}, nil
}

// FormatFromPath picks json, yaml or toml from a file extension.
func FormatFromPath(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	case ".toml":
		return "toml", nil
	default:
		return "", fmt.Errorf("unsupported layout file extension %q", ext)
	}
}

// Decode parses a layout file in the given format.
func Decode(data []byte, format string) (Layout, error) {
	var f File
	var err error
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&f)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &f)
	case "toml":
		err = toml.Unmarshal(data, &f)
	default:
		return Layout{}, fmt.Errorf("unsupported layout format %q", format)
	}
	if err != nil {
		return Layout{}, fmt.Errorf("decode %s layout: %w", format, err)
	}
	return f.Layout()
}

// Encode writes l in the given format.
func Encode(l Layout, format string) ([]byte, error) {
	f := l.ToFile()
	switch format {
	case "json":
		return json.MarshalIndent(f, "", "  ")
	case "yaml", "yml":
		return yaml.Marshal(f)
	case "toml":
		return toml.Marshal(f)
	default:
		return nil, fmt.Errorf("unsupported layout format %q", format)
	}
}

// LoadFile reads, decodes and compiles a layout file.
func LoadFile(path string) (*Map, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	m, err := New(l)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return m, nil
}
