// Package scale holds the static twelve-tone table: note naming, white/black
// key colour and the symbolic key roles each degree is struck with.
package scale

import "fmt"

// Note is a MIDI note number. Valid notes are 0-127; 60 is middle C (C4).
type Note uint8

const (
	MinNote Note = 0
	MaxNote Note = 127

	// Octave is the number of semitones in one octave.
	Octave = 12
)

// Degree describes one semitone position within an octave.
type Degree struct {
	Name  string
	Black bool
}

var degrees = [Octave]Degree{
	{Name: "C"},
	{Name: "C#", Black: true},
	{Name: "D"},
	{Name: "D#", Black: true},
	{Name: "E"},
	{Name: "F"},
	{Name: "F#", Black: true},
	{Name: "G"},
	{Name: "G#", Black: true},
	{Name: "A"},
	{Name: "A#", Black: true},
	{Name: "B"},
}

// Lookup returns the degree for a semitone offset. Offsets outside 0-11 are
// reduced modulo 12.
func Lookup(offset int) Degree {
	offset %= Octave
	if offset < 0 {
		offset += Octave
	}
	return degrees[offset]
}

// Valid reports whether n is inside the MIDI note range.
func (n Note) Valid() bool { return n <= MaxNote }

// Offset is the semitone position of n within its octave.
func (n Note) Offset() int { return int(n) % Octave }

// Octave is the scientific pitch octave number (C4 = 60, C-1 = 0).
func (n Note) Octave() int { return int(n)/Octave - 1 }

// Degree returns the scale table entry for n.
func (n Note) Degree() Degree { return degrees[n.Offset()] }

// IsBlack reports whether n falls on a black piano key.
func (n Note) IsBlack() bool { return n.Degree().Black }

// Name returns the note name with octave, e.g. "C#4".
func (n Note) Name() string {
	return fmt.Sprintf("%s%d", n.Degree().Name, n.Octave())
}

func (n Note) String() string {
	return fmt.Sprintf("%s(%d)", n.Name(), uint8(n))
}

// Shift returns n moved by semitones and whether the result is still a
// valid MIDI note.
func (n Note) Shift(semitones int) (Note, bool) {
	v := int(n) + semitones
	if v < int(MinNote) || v > int(MaxNote) {
		return n, false
	}
	return Note(v), true
}
