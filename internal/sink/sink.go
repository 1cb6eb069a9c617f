// Package sink opens the virtual keyboard the engine drives.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Alia5/midikeys/engine"
	"github.com/Alia5/midikeys/internal/log"
	"github.com/Alia5/midikeys/internal/sink/uinput"
	"github.com/Alia5/midikeys/internal/sink/viiper"
	"github.com/Alia5/midikeys/keyboard"
)

// ErrUnknownSink is returned by Open for an unknown backend name.
var ErrUnknownSink = errors.New("unknown virtual keyboard backend")

// Keyboard is an open virtual keyboard.
type Keyboard interface {
	engine.Sink
	io.Closer
}

// Config selects and configures the backend.
type Config struct {
	Backend string        `help:"Virtual keyboard backend (viiper, uinput, log)" enum:"viiper,uinput,log" default:"viiper" env:"MIDIKEYS_SINK"`
	Viiper  viiper.Config `embed:"" prefix:"viiper."`
	Uinput  uinput.Config `embed:"" prefix:"uinput."`
}

// Open opens the configured backend.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, raw log.RawLogger) (Keyboard, error) {
	switch cfg.Backend {
	case "viiper", "":
		kb, err := viiper.Open(ctx, cfg.Viiper, logger, raw)
		if err != nil {
			return nil, err
		}
		return kb, nil
	case "uinput":
		kb, err := uinput.Open(cfg.Uinput, logger)
		if err != nil {
			return nil, err
		}
		return kb, nil
	case "log":
		return NewLog(logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, cfg.Backend)
	}
}

// Log is a dry-run keyboard: it logs every command and tracks key state
// without emitting anything.
type Log struct {
	logger *slog.Logger
	mu     sync.Mutex
	state  keyboard.InputState
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Press(k keyboard.Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Press(k)
	l.logger.Info("press", "key", k, "held", l.state.String())
	return nil
}

func (l *Log) Release(k keyboard.Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Release(k)
	l.logger.Info("release", "key", k, "held", l.state.String())
	return nil
}

// Held returns the keys currently down.
func (l *Log) Held() []keyboard.Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Pressed()
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.state.Empty() {
		l.logger.Warn("closing with keys held", "held", l.state.String())
	}
	l.state = keyboard.InputState{}
	return nil
}
