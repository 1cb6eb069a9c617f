// Package midiin reads note events from a MIDI input port.
package midiin

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"github.com/Alia5/midikeys/internal/log"
	"github.com/Alia5/midikeys/scale"
)

// DrumChannel is the General MIDI percussion channel, 1-based.
const DrumChannel = 10

// ErrNoPort is returned when no input port matches.
var ErrNoPort = errors.New("no matching MIDI input port")

// Kind is the type of a note event.
type Kind int

const (
	NoteOn Kind = iota
	NoteOff
)

func (k Kind) String() string {
	if k == NoteOn {
		return "note-on"
	}
	return "note-off"
}

// Event is one decoded note message. Channel is 1-based.
type Event struct {
	Kind     Kind
	Channel  uint8
	Note     scale.Note
	Velocity uint8
}

// Decode turns a MIDI message into a note event. Note-on with velocity 0 is
// a note-off; every other message is ignored.
func Decode(msg midi.Message) (Event, bool) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return Event{Kind: NoteOn, Channel: ch + 1, Note: scale.Note(key), Velocity: vel}, true
	case msg.GetNoteEnd(&ch, &key):
		return Event{Kind: NoteOff, Channel: ch + 1, Note: scale.Note(key)}, true
	default:
		return Event{}, false
	}
}

// Filter drops events from unwanted channels.
type Filter struct {
	IgnoreChannels []uint8 `help:"MIDI channels (1-16) to ignore" default:"10" env:"MIDIKEYS_IGNORE_CHANNELS"`
}

// Pass reports whether e should reach the engine.
func (f Filter) Pass(e Event) bool {
	return !slices.Contains(f.IgnoreChannels, e.Channel)
}

// Port describes one input port.
type Port struct {
	Number int
	Name   string
}

// Ports lists the available input ports.
func Ports() ([]Port, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, fmt.Errorf("list MIDI inputs: %w", err)
	}
	out := make([]Port, len(ins))
	for i, in := range ins {
		out[i] = Port{Number: in.Number(), Name: in.String()}
	}
	return out, nil
}

// Find resolves id as a port number, or else as a case-insensitive
// substring of the port name.
func Find(id string) (drivers.In, error) {
	ins := midi.GetInPorts()
	if len(ins) == 0 {
		return nil, fmt.Errorf("%w: no MIDI inputs found", ErrNoPort)
	}
	idx, err := pick(portNames(ins), id)
	if err != nil {
		return nil, err
	}
	return ins[idx], nil
}

func portNames(ins []drivers.In) []Port {
	out := make([]Port, len(ins))
	for i, in := range ins {
		out[i] = Port{Number: in.Number(), Name: in.String()}
	}
	return out
}

func pick(ports []Port, id string) (int, error) {
	id = strings.TrimSpace(id)
	if n, err := strconv.Atoi(id); err == nil {
		for i, p := range ports {
			if p.Number == n {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: number %d", ErrNoPort, n)
	}
	needle := strings.ToLower(id)
	for i, p := range ports {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNoPort, id)
}

// Input opens ports and feeds filtered note events to a handler.
type Input struct {
	Filter Filter
	Logger *slog.Logger
	Raw    log.RawLogger
}

// Open starts listening on the port matching id. The returned stop function
// stops the listener and closes the port.
func (in *Input) Open(id string, h func(Event)) (string, func(), error) {
	port, err := Find(id)
	if err != nil {
		return "", nil, err
	}
	stopListen, err := midi.ListenTo(port, func(msg midi.Message, _ int32) {
		in.Raw.Log(log.MIDIIn, msg.Bytes())
		ev, ok := Decode(msg)
		if !ok || !in.Filter.Pass(ev) {
			return
		}
		h(ev)
	}, midi.HandleError(func(err error) {
		in.Logger.Warn("MIDI input error", "port", port.String(), "error", err)
	}))
	if err != nil {
		return "", nil, fmt.Errorf("listen on %s: %w", port.String(), err)
	}
	in.Logger.Info("Listening for MIDI", "port", port.String())
	return port.String(), func() {
		stopListen()
		_ = port.Close()
	}, nil
}
