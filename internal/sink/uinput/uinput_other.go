//go:build !linux

package uinput

import (
	"log/slog"

	"github.com/Alia5/midikeys/keyboard"
)

// Sink is unavailable on this platform.
type Sink struct{}

func Open(cfg Config, logger *slog.Logger) (*Sink, error) {
	return nil, ErrUnsupported
}

func (s *Sink) Press(k keyboard.Key) error   { return ErrUnsupported }
func (s *Sink) Release(k keyboard.Key) error { return ErrUnsupported }
func (s *Sink) Close() error                 { return nil }
