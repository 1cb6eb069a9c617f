package keymap

import "github.com/Alia5/midikeys/scale"

// MaxOctaveShifts bounds the transposition search. Ten octaves span the
// whole MIDI range, so a reachable band is always found within it.
const MaxOctaveShifts = 10

// Transpose moves n by whole octaves into an enabled band. It heads for the
// numerically nearest enabled band first (ties go upward) and falls back to
// the other direction. It reports false when no enabled band is reachable
// without leaving the MIDI range.
func (m *Map) Transpose(n scale.Note, r Ranges) (scale.Note, bool) {
	if _, err := m.Resolve(n, r); err == nil {
		return n, true
	}
	dir, ok := m.nearestDirection(n, r)
	if !ok {
		return n, false
	}
	if t, ok := m.shiftInto(n, dir, r); ok {
		return t, true
	}
	return m.shiftInto(n, -dir, r)
}

func (m *Map) nearestDirection(n scale.Note, r Ranges) (int, bool) {
	best, dir := -1, 0
	for _, b := range bandOrder {
		bl := m.layout.Band(b)
		if !bl.Present() || !r.Enabled(b) {
			continue
		}
		var dist, d int
		switch {
		case n < bl.Low:
			dist, d = int(bl.Low)-int(n), 1
		case n > bl.High:
			dist, d = int(n)-int(bl.High), -1
		default:
			dist, d = 0, 1
		}
		if best < 0 || dist < best || (dist == best && d > dir) {
			best, dir = dist, d
		}
	}
	return dir, best >= 0
}

func (m *Map) shiftInto(n scale.Note, dir int, r Ranges) (scale.Note, bool) {
	for i := 1; i <= MaxOctaveShifts; i++ {
		t, ok := n.Shift(dir * scale.Octave * i)
		if !ok {
			return n, false
		}
		if _, err := m.Resolve(t, r); err == nil {
			return t, true
		}
	}
	return n, false
}
