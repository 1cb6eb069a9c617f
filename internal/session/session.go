// Package session owns the ordered event stream between a MIDI input and
// the key-state engine. Every note event and every control command is
// applied by one goroutine, in arrival order.
package session

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Alia5/midikeys/internal/midiin"
	"github.com/Alia5/midikeys/scale"
)

// ErrClosed is returned by commands issued after Run has returned.
var ErrClosed = errors.New("session closed")

// Source opens a MIDI input. The handler may be called from any goroutine
// until stop returns.
type Source interface {
	Open(id string, h func(midiin.Event)) (port string, stop func(), err error)
}

// Engine is the key-state engine as seen by the session.
type Engine interface {
	NoteOn(n scale.Note, velocity uint8) error
	NoteOff(n scale.Note) error
	ReleaseAll() error
}

type StatusKind int

const (
	Connected StatusKind = iota
	Disconnected
	DeviceError
	Released
)

func (k StatusKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case DeviceError:
		return "device error"
	case Released:
		return "keys released"
	default:
		return "unknown"
	}
}

// Status is a notification for the control surface.
type Status struct {
	Kind StatusKind
	Port string
	Err  error
	Time time.Time
}

type item struct {
	ev   midiin.Event
	ctl  func() error
	done chan error
}

type Session struct {
	src      Source
	eng      Engine
	logger   *slog.Logger
	quantize time.Duration
	now      func() time.Time

	in     chan item
	status chan Status
	done   chan struct{}
	start  time.Time

	// connMu serializes Connect and Disconnect.
	connMu sync.Mutex

	mu       sync.Mutex
	port     string
	stop     func()
	closed   bool
	sounding map[scale.Note]bool
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

// WithQuantize delays every note-on to the next multiple of grid since the
// session started. Zero disables it. Events stay in order, so anything queued
// behind a waiting note-on, note-offs included, waits with it.
func WithQuantize(grid time.Duration) Option { return func(s *Session) { s.quantize = grid } }

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

func New(src Source, eng Engine, opts ...Option) *Session {
	s := &Session{
		src:      src,
		eng:      eng,
		logger:   slog.Default(),
		now:      time.Now,
		in:       make(chan item, 256),
		status:   make(chan Status, 32),
		done:     make(chan struct{}),
		sounding: map[scale.Note]bool{},
	}
	for _, o := range opts {
		o(s)
	}
	s.start = s.now()
	return s
}

// Status delivers notifications. Slow readers miss notifications rather
// than stall the event loop.
func (s *Session) Status() <-chan Status { return s.status }

// Connected reports whether a MIDI input is open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Port returns the name of the open input, or "".
func (s *Session) Port() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Sounding returns the notes the MIDI input currently holds down.
func (s *Session) Sounding() []scale.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.sounding))
}

// Run applies queued events until ctx ends, then stops the input, applies
// what is still queued and releases every key.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case it := <-s.in:
			s.apply(ctx, it)
		}
	}
}

func (s *Session) shutdown() {
	s.mu.Lock()
	stop, port := s.stop, s.port
	s.stop, s.port = nil, ""
	s.closed = true
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	for {
		select {
		case it := <-s.in:
			s.apply(context.Background(), it)
		default:
			s.releaseAll()
			if port != "" {
				s.publish(Status{Kind: Disconnected, Port: port})
			}
			return
		}
	}
}

// Connect opens the input matching id, replacing any open input.
func (s *Session) Connect(ctx context.Context, id string) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if err := s.disconnect(ctx); err != nil && !errors.Is(err, ErrClosed) {
		s.logger.Warn("release on reconnect failed", "error", err)
	}
	port, stop, err := s.src.Open(id, s.enqueue)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stop()
		return ErrClosed
	}
	s.port, s.stop = port, stop
	s.mu.Unlock()
	s.logger.Info("MIDI input connected", "port", port)
	s.publish(Status{Kind: Connected, Port: port})
	return nil
}

// Disconnect stops the input, lets every queued event through and then
// releases all keys before returning.
func (s *Session) Disconnect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.disconnect(ctx)
}

func (s *Session) disconnect(ctx context.Context) error {
	s.mu.Lock()
	stop, port := s.stop, s.port
	s.stop, s.port = nil, ""
	s.mu.Unlock()
	if stop == nil {
		return nil
	}
	stop()
	err := s.do(ctx, s.releaseAll)
	s.logger.Info("MIDI input disconnected", "port", port)
	s.publish(Status{Kind: Disconnected, Port: port})
	return err
}

// ReleaseKeys is the panic action: every held key goes up, the input stays
// open.
func (s *Session) ReleaseKeys(ctx context.Context) error {
	err := s.do(ctx, s.releaseAll)
	if err == nil {
		s.publish(Status{Kind: Released})
	}
	return err
}

func (s *Session) releaseAll() error {
	s.mu.Lock()
	clear(s.sounding)
	s.mu.Unlock()
	if err := s.eng.ReleaseAll(); err != nil {
		s.publish(Status{Kind: DeviceError, Err: err})
		return err
	}
	return nil
}

func (s *Session) enqueue(ev midiin.Event) {
	select {
	case s.in <- item{ev: ev}:
	case <-s.done:
	}
}

func (s *Session) do(ctx context.Context, f func() error) error {
	it := item{ctl: f, done: make(chan error, 1)}
	select {
	case s.in <- it:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-it.done:
		return err
	case <-s.done:
		// Run drains the queue before closing done.
		select {
		case err := <-it.done:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) apply(ctx context.Context, it item) {
	if it.ctl != nil {
		it.done <- it.ctl()
		return
	}

	ev := it.ev
	var err error
	switch ev.Kind {
	case midiin.NoteOn:
		s.waitGrid(ctx)
		s.mu.Lock()
		s.sounding[ev.Note] = true
		s.mu.Unlock()
		err = s.eng.NoteOn(ev.Note, ev.Velocity)
	case midiin.NoteOff:
		s.mu.Lock()
		delete(s.sounding, ev.Note)
		s.mu.Unlock()
		err = s.eng.NoteOff(ev.Note)
	}
	if err != nil {
		s.logger.Error("virtual keyboard error", "event", ev.Kind, "note", ev.Note, "error", err)
		s.publish(Status{Kind: DeviceError, Err: err})
	}
}

func (s *Session) waitGrid(ctx context.Context) {
	if s.quantize <= 0 {
		return
	}
	elapsed := s.now().Sub(s.start)
	wait := s.quantize - elapsed%s.quantize
	if wait == s.quantize {
		return
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (s *Session) publish(st Status) {
	if st.Time.IsZero() {
		st.Time = s.now()
	}
	select {
	case s.status <- st:
	default:
	}
}
