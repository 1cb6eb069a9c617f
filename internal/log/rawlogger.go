package log

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// Direction tags a raw dump with the side of the bridge it came from.
type Direction int

const (
	// MIDIIn is a message received from the MIDI input port.
	MIDIIn Direction = iota
	// DeviceOut is data written to the virtual keyboard.
	DeviceOut
)

func (d Direction) String() string {
	if d == MIDIIn {
		return "MIDI->"
	}
	return "->KBD"
}

// RawLogger dumps raw traffic as single hex lines.
type RawLogger interface {
	Log(dir Direction, data []byte)
}

type rawLogger struct {
	w   io.Writer
	mu  sync.Mutex
	now func() time.Time
}

// NewRaw creates a RawLogger writing to w. A nil w yields a no-op logger.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w, now: time.Now}
}

func (r *rawLogger) Log(dir Direction, data []byte) {
	if len(data) == 0 || r.w == nil {
		return
	}

	var hexbuf bytes.Buffer
	const hexdigits = "0123456789abcdef"
	for i, b := range data {
		if i > 0 {
			hexbuf.WriteByte(' ')
		}
		hexbuf.WriteByte(hexdigits[b>>4])
		hexbuf.WriteByte(hexdigits[b&0x0f])
	}

	line := fmt.Sprintf("%s %s %d bytes: %s\n",
		r.now().Format("2006/01/02 15:04:05.000"),
		dir,
		len(data),
		hexbuf.String())

	r.mu.Lock()
	_, _ = r.w.Write([]byte(line))
	r.mu.Unlock()
}
