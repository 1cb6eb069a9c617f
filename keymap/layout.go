// Package keymap binds MIDI notes to emulated keys. A Layout describes the
// base band and the two modifier-extended bands; a compiled Map answers the
// range policy (Resolve) and the octave transposition (Transpose) queries.
package keymap

import (
	"fmt"

	"github.com/Alia5/midikeys/keyboard"
	"github.com/Alia5/midikeys/scale"
)

// Band identifies one of the three note bands.
type Band int

const (
	BandBase Band = iota
	BandLow
	BandHigh
)

// bandOrder is the order bands are checked in.
var bandOrder = [...]Band{BandBase, BandLow, BandHigh}

func (b Band) String() string {
	switch b {
	case BandBase:
		return "base"
	case BandLow:
		return "low"
	case BandHigh:
		return "high"
	default:
		return fmt.Sprintf("band(%d)", int(b))
	}
}

// Ranges are the per-band enable flags.
type Ranges struct {
	Base bool
	Low  bool
	High bool
}

// Enabled reports whether band b is switched on.
func (r Ranges) Enabled(b Band) bool {
	switch b {
	case BandBase:
		return r.Base
	case BandLow:
		return r.Low
	case BandHigh:
		return r.High
	default:
		return false
	}
}

// Any reports whether at least one band is switched on.
func (r Ranges) Any() bool { return r.Base || r.Low || r.High }

// BandLayout binds one contiguous note range to keys.
//
// A chromatic band maps every note from Low to High onto Keys in order. A
// diatonic band maps its white notes onto Keys in order and strikes each
// black note on the key of the white note below it, using the layout's
// black-key encoding. Modifier, when set, is held for every note of the band.
type BandLayout struct {
	Low       scale.Note
	High      scale.Note
	Modifier  keyboard.Key
	Keys      []keyboard.Key
	Chromatic bool
}

// Present reports whether the band is configured at all.
func (b BandLayout) Present() bool { return len(b.Keys) > 0 }

// Contains reports whether n lies within the band bounds.
func (b BandLayout) Contains(n scale.Note) bool {
	return b.Present() && n >= b.Low && n <= b.High
}

// Layout is the full note-to-key table.
type Layout struct {
	Base BandLayout
	Low  BandLayout
	High BandLayout

	// BlackModifier is held with the base key for black notes of a diatonic
	// band in normal mode.
	BlackModifier keyboard.Key
	// TransposeUp and TransposeDown are tapped around black notes in
	// experimental mode. Leaving them unset disables experimental mode.
	TransposeUp   keyboard.Key
	TransposeDown keyboard.Key
}

// Band returns the layout for b.
func (l *Layout) Band(b Band) BandLayout {
	switch b {
	case BandLow:
		return l.Low
	case BandHigh:
		return l.High
	default:
		return l.Base
	}
}

// Default returns the 88-key virtual piano layout: C2-C7 on the number and
// letter rows with Shift for black keys, A0-B1 and C#7-C8 on the same rows
// with Ctrl held, and Up/Down as the transposition keys.
func Default() Layout {
	return Layout{
		Base: BandLayout{
			Low:  36,
			High: 96,
			Keys: mustKeys("1234567890qwertyuiopasdfghjklzxcvbnm"),
		},
		Low: BandLayout{
			Low:       21,
			High:      35,
			Modifier:  keyboard.KeyLeftCtrl,
			Keys:      mustKeys("1234567890qwert"),
			Chromatic: true,
		},
		High: BandLayout{
			Low:       97,
			High:      108,
			Modifier:  keyboard.KeyLeftCtrl,
			Keys:      mustKeys("yuiopasdfghj"),
			Chromatic: true,
		},
		BlackModifier: keyboard.KeyLeftShift,
		TransposeUp:   keyboard.KeyUp,
		TransposeDown: keyboard.KeyDown,
	}
}

func mustKeys(s string) []keyboard.Key {
	keys, err := keyboard.KeysFromString(s)
	if err != nil {
		panic(err)
	}
	return keys
}
