package engine

import (
	"slices"

	"github.com/Alia5/midikeys/keyboard"
	"github.com/Alia5/midikeys/keymap"
	"github.com/Alia5/midikeys/scale"
)

// Stroke is the concrete key sequence for one note. Lead keys are tapped
// before the hold, Hold keys are pressed in order and released in reverse at
// note-off, Trail keys are tapped after the hold is in place.
type Stroke struct {
	Lead  []keyboard.Key
	Hold  []keyboard.Key
	Trail []keyboard.Key
}

// Encoder turns a placement into a stroke. Encoders are the pluggable part
// of black-key handling.
type Encoder interface {
	Encode(km *keymap.Map, p keymap.Placement) Stroke
}

// RoleEncoder encodes placements from the scale role table for one mode.
// The band modifier, if any, always leads the hold.
type RoleEncoder struct {
	Mode scale.Mode
}

var (
	NormalEncoder    Encoder = RoleEncoder{Mode: scale.ModeNormal}
	TransposeEncoder Encoder = RoleEncoder{Mode: scale.ModeExperimental}
)

func (e RoleEncoder) Encode(km *keymap.Map, p keymap.Placement) Stroke {
	d := scale.Degree{Black: p.Black}
	strike := scale.StrikeFor(d, e.Mode)

	var s Stroke
	if p.Modifier != keyboard.KeyNone {
		s.Hold = append(s.Hold, p.Modifier)
	}
	s.Lead = bindAll(km, p, strike.Lead, nil)
	s.Hold = bindAll(km, p, strike.Hold, s.Hold)
	s.Trail = bindAll(km, p, strike.Trail, nil)
	return s
}

func bindAll(km *keymap.Map, p keymap.Placement, roles []scale.Role, dst []keyboard.Key) []keyboard.Key {
	for _, r := range roles {
		k := km.Bind(r, p)
		if k == keyboard.KeyNone || slices.Contains(dst, k) {
			continue
		}
		dst = append(dst, k)
	}
	return dst
}
