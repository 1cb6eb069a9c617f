package keymap

import (
	"errors"
	"fmt"

	"github.com/Alia5/midikeys/keyboard"
	"github.com/Alia5/midikeys/scale"
)

// ErrNotPlayable is returned by Resolve when a note falls outside every
// enabled band.
var ErrNotPlayable = errors.New("note not playable")

// Placement is the resolved plan for striking one note.
type Placement struct {
	Note     scale.Note
	Band     Band
	Modifier keyboard.Key // band modifier, KeyNone for an unmodified band
	Key      keyboard.Key // base key
	Black    bool         // struck with the black-key encoding
}

type binding struct {
	ok    bool
	band  Band
	key   keyboard.Key
	black bool
}

// Map is a validated, compiled Layout. It is immutable and safe for
// concurrent use.
type Map struct {
	layout Layout
	table  [int(scale.MaxNote) + 1]binding
}

// New validates l and compiles it into a note table.
func New(l Layout) (*Map, error) {
	m := &Map{layout: l}
	present := 0
	for _, b := range bandOrder {
		bl := l.Band(b)
		if !bl.Present() {
			continue
		}
		present++
		if err := m.compileBand(b, bl); err != nil {
			return nil, fmt.Errorf("%s band: %w", b, err)
		}
	}
	if present == 0 {
		return nil, errors.New("layout has no bands")
	}
	if err := m.checkTransposeKeys(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Map) compileBand(b Band, bl BandLayout) error {
	if !bl.Low.Valid() || !bl.High.Valid() {
		return fmt.Errorf("bounds %d-%d outside MIDI range", bl.Low, bl.High)
	}
	if bl.Low > bl.High {
		return fmt.Errorf("low bound %d above high bound %d", bl.Low, bl.High)
	}
	for _, k := range bl.Keys {
		if k == keyboard.KeyNone {
			return errors.New("key list contains an empty key")
		}
	}

	width := int(bl.High) - int(bl.Low) + 1
	if bl.Chromatic {
		if len(bl.Keys) != width {
			return fmt.Errorf("chromatic band %s-%s needs %d keys, got %d", bl.Low.Name(), bl.High.Name(), width, len(bl.Keys))
		}
	} else {
		if bl.Low.IsBlack() {
			return fmt.Errorf("diatonic band must start on a white note, got %s", bl.Low.Name())
		}
		whites := 0
		for n := int(bl.Low); n <= int(bl.High); n++ {
			if !scale.Note(n).IsBlack() {
				whites++
			}
		}
		if len(bl.Keys) != whites {
			return fmt.Errorf("band %s-%s has %d white notes, got %d keys", bl.Low.Name(), bl.High.Name(), whites, len(bl.Keys))
		}
		if m.layout.BlackModifier == keyboard.KeyNone {
			return errors.New("diatonic band requires a black-key modifier")
		}
	}

	white := -1
	for n := int(bl.Low); n <= int(bl.High); n++ {
		note := scale.Note(n)
		if prev := m.table[n]; prev.ok {
			return fmt.Errorf("overlaps %s band at %s", prev.band, note.Name())
		}
		bd := binding{ok: true, band: b}
		switch {
		case bl.Chromatic:
			bd.key = bl.Keys[n-int(bl.Low)]
		case note.IsBlack():
			bd.key = bl.Keys[white]
			bd.black = true
		default:
			white++
			bd.key = bl.Keys[white]
		}
		m.table[n] = bd
	}
	return nil
}

func (m *Map) checkTransposeKeys() error {
	l := m.layout
	if (l.TransposeUp == keyboard.KeyNone) != (l.TransposeDown == keyboard.KeyNone) {
		return errors.New("transpose keys must be set together")
	}
	if l.TransposeUp == keyboard.KeyNone {
		return nil
	}
	if l.TransposeUp == l.TransposeDown {
		return errors.New("transpose up and down keys must differ")
	}
	used := map[keyboard.Key]string{}
	if l.BlackModifier != keyboard.KeyNone {
		used[l.BlackModifier] = "black-key modifier"
	}
	for _, b := range bandOrder {
		bl := l.Band(b)
		if !bl.Present() {
			continue
		}
		if bl.Modifier != keyboard.KeyNone {
			used[bl.Modifier] = b.String() + " band modifier"
		}
		for _, k := range bl.Keys {
			used[k] = b.String() + " band"
		}
	}
	for _, k := range []keyboard.Key{l.TransposeUp, l.TransposeDown} {
		if owner, ok := used[k]; ok {
			return fmt.Errorf("transpose key %s is also used by the %s", k, owner)
		}
	}
	return nil
}

// Layout returns a copy of the layout m was compiled from.
func (m *Map) Layout() Layout { return m.layout }

// ExperimentalSupported reports whether transposition keys are bound.
func (m *Map) ExperimentalSupported() bool {
	return m.layout.TransposeUp != keyboard.KeyNone
}

// BandOf returns the band that contains n, if any. Bands never overlap, so
// the answer is unique.
func (m *Map) BandOf(n scale.Note) (Band, bool) {
	if !n.Valid() {
		return 0, false
	}
	b := m.table[n]
	return b.band, b.ok
}

// Resolve applies the range policy: n is playable only if it lies in a band
// whose flag is enabled. The returned error wraps ErrNotPlayable.
func (m *Map) Resolve(n scale.Note, r Ranges) (Placement, error) {
	if !n.Valid() {
		return Placement{}, fmt.Errorf("%d: outside MIDI range: %w", uint8(n), ErrNotPlayable)
	}
	b := m.table[n]
	if !b.ok {
		return Placement{}, fmt.Errorf("%s: outside all bands: %w", n.Name(), ErrNotPlayable)
	}
	if !r.Enabled(b.band) {
		return Placement{}, fmt.Errorf("%s: %s range disabled: %w", n.Name(), b.band, ErrNotPlayable)
	}
	return Placement{
		Note:     n,
		Band:     b.band,
		Modifier: m.layout.Band(b.band).Modifier,
		Key:      b.key,
		Black:    b.black,
	}, nil
}

// Bind returns the concrete key for a role of placement p. Roles that the
// layout leaves unbound yield KeyNone.
func (m *Map) Bind(role scale.Role, p Placement) keyboard.Key {
	switch role {
	case scale.RoleBase:
		return p.Key
	case scale.RoleBlackModifier:
		return m.layout.BlackModifier
	case scale.RoleTransposeUp:
		return m.layout.TransposeUp
	case scale.RoleTransposeDown:
		return m.layout.TransposeDown
	default:
		return keyboard.KeyNone
	}
}
