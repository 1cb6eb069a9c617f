// Package engine is the key-state engine. It turns note-on/note-off events
// into press/release commands on a virtual keyboard and owns the record of
// which keys every sounding note holds.
//
// Releases always replay the recorded key set, never a freshly resolved one,
// so configuration changes made while a note is held cannot strand a key.
// Physical keys are reference counted: when two notes share a key (C2 on "1"
// and A0 on Ctrl+"1" in the default layout) the key goes up only when the
// last note lets go. A note that needs a key another note already holds
// re-strikes it (release, press) so the target still sees a key-down; shared
// modifiers are left alone.
//
// A key whose release the sink rejected is remembered as stray and retried
// by every ReleaseAll until the sink accepts it.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Alia5/midikeys/keyboard"
	"github.com/Alia5/midikeys/keymap"
	"github.com/Alia5/midikeys/scale"
	"github.com/Alia5/midikeys/settings"
)

// ErrDevice marks failures reported by the sink.
var ErrDevice = errors.New("virtual keyboard error")

// Sink is the virtual keyboard. Calls are synchronous and take effect before
// they return.
type Sink interface {
	Press(k keyboard.Key) error
	Release(k keyboard.Key) error
}

// Hold is one sounding note.
type Hold struct {
	Note   scale.Note     // note as received
	Target scale.Note     // note actually struck, differs after transposition
	Keys   []keyboard.Key // in press order
}

// Stats counts engine decisions since start.
type Stats struct {
	NoteOns      uint64
	NoteOffs     uint64
	Dropped      uint64
	Transposed   uint64
	StaleHolds   uint64
	SpuriousOffs uint64
	DeviceErrors uint64
}

// Engine is safe for concurrent use; calls are serialized so events are
// applied strictly one at a time in call order.
type Engine struct {
	mu       sync.Mutex
	keymap   *keymap.Map
	settings settings.Source
	sink     Sink
	logger   *slog.Logger
	encoders map[scale.Mode]Encoder
	sleep    func(time.Duration)

	held  map[scale.Note]Hold
	refs  map[keyboard.Key]int
	stray map[keyboard.Key]bool
	stats Stats
}

type Option func(*Engine)

// WithLogger sets the logger used for decisions and device errors.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithEncoder replaces the encoder used for mode m.
func WithEncoder(m scale.Mode, enc Encoder) Option {
	return func(e *Engine) { e.encoders[m] = enc }
}

// WithSleep replaces time.Sleep for the experimental tap delay.
func WithSleep(f func(time.Duration)) Option {
	return func(e *Engine) { e.sleep = f }
}

// New creates an engine with no notes held.
func New(km *keymap.Map, src settings.Source, sink Sink, opts ...Option) *Engine {
	e := &Engine{
		keymap:   km,
		settings: src,
		sink:     sink,
		logger:   slog.Default(),
		encoders: map[scale.Mode]Encoder{
			scale.ModeNormal:       NormalEncoder,
			scale.ModeExperimental: TransposeEncoder,
		},
		sleep: time.Sleep,
		held:  map[scale.Note]Hold{},
		refs:  map[keyboard.Key]int{},
		stray: map[keyboard.Key]bool{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NoteOn strikes note n. Velocity is accepted for interface parity and
// ignored. A note that is already held is released first and struck again.
// Unplayable notes are dropped without error.
func (e *Engine) NoteOn(n scale.Note, velocity uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.NoteOns++
	snap := e.settings.Snapshot()

	if h, ok := e.held[n]; ok {
		e.stats.StaleHolds++
		e.logger.Debug("note already held, re-keying", "note", n, "keys", h.Keys)
		delete(e.held, n)
		if err := e.releaseKeys(h.Keys); err != nil {
			return e.fail(err)
		}
	}

	p, ok := e.place(n, snap)
	if !ok {
		e.stats.Dropped++
		return nil
	}

	stroke := e.encoderFor(snap.Mode()).Encode(e.keymap, p)
	if err := e.strike(stroke, snap.TapDelay); err != nil {
		return e.fail(err)
	}
	e.held[n] = Hold{Note: n, Target: p.Note, Keys: stroke.Hold}
	e.logger.Debug("note on", "note", n, "target", p.Note, "band", p.Band, "hold", stroke.Hold, "lead", stroke.Lead, "trail", stroke.Trail)
	return nil
}

// NoteOff releases whatever NoteOn pressed for n. Unknown notes are ignored.
func (e *Engine) NoteOff(n scale.Note) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.NoteOffs++
	h, ok := e.held[n]
	if !ok {
		e.stats.SpuriousOffs++
		return nil
	}
	delete(e.held, n)
	if err := e.releaseKeys(h.Keys); err != nil {
		return e.fail(err)
	}
	e.logger.Debug("note off", "note", n, "released", h.Keys)
	return nil
}

// ReleaseAll releases every held key and forgets all notes. It is the
// disconnect and shutdown path.
func (e *Engine) ReleaseAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releaseAllLocked()
}

// Holds returns the sounding notes ordered by note number.
func (e *Engine) Holds() []Hold {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Hold, 0, len(e.held))
	for _, h := range e.held {
		h.Keys = slices.Clone(h.Keys)
		out = append(out, h)
	}
	slices.SortFunc(out, func(a, b Hold) int { return int(a.Note) - int(b.Note) })
	return out
}

// Stats returns a copy of the counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Keymap returns the compiled layout the engine resolves against.
func (e *Engine) Keymap() *keymap.Map { return e.keymap }

func (e *Engine) place(n scale.Note, snap settings.Settings) (keymap.Placement, bool) {
	p, err := e.keymap.Resolve(n, snap.Ranges)
	if err == nil {
		return p, true
	}
	if !snap.AutoTranspose {
		e.logger.Debug("dropping note", "note", n, "reason", err)
		return keymap.Placement{}, false
	}
	t, ok := e.keymap.Transpose(n, snap.Ranges)
	if !ok {
		e.logger.Debug("dropping note, no reachable range", "note", n, "reason", err)
		return keymap.Placement{}, false
	}
	p, err = e.keymap.Resolve(t, snap.Ranges)
	if err != nil {
		e.logger.Debug("dropping note", "note", n, "target", t, "reason", err)
		return keymap.Placement{}, false
	}
	e.stats.Transposed++
	return p, true
}

func (e *Engine) encoderFor(m scale.Mode) Encoder {
	if m == scale.ModeExperimental && !e.keymap.ExperimentalSupported() {
		m = scale.ModeNormal
	}
	if enc, ok := e.encoders[m]; ok {
		return enc
	}
	return NormalEncoder
}

// strike presses a stroke. On failure everything this stroke still holds is
// released again, and if a lead tap reached the sink the trail is tapped so
// the target is not left transposed.
func (e *Engine) strike(s Stroke, delay time.Duration) error {
	leadSent := false
	undoLead := func() error {
		if !leadSent {
			return nil
		}
		var errs []error
		for _, k := range s.Trail {
			if _, err := e.tap(k); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	for _, k := range s.Lead {
		sent, err := e.tap(k)
		leadSent = leadSent || sent
		if err != nil {
			return errors.Join(err, undoLead())
		}
		e.pause(delay)
	}

	pressed := make([]keyboard.Key, 0, len(s.Hold))
	for _, k := range s.Hold {
		if err := e.acquire(k); err != nil {
			return errors.Join(err, e.releaseKeys(pressed), undoLead())
		}
		pressed = append(pressed, k)
	}

	for _, k := range s.Trail {
		e.pause(delay)
		if _, err := e.tap(k); err != nil {
			return errors.Join(err, e.releaseKeys(pressed))
		}
	}
	return nil
}

func (e *Engine) pause(d time.Duration) {
	if d > 0 {
		e.sleep(d)
	}
}

// tap presses and releases k. sent reports whether the press reached the
// sink; a failed release leaves k stray.
func (e *Engine) tap(k keyboard.Key) (sent bool, err error) {
	if err := e.sink.Press(k); err != nil {
		return false, fmt.Errorf("tap %s: %w: %w", k, ErrDevice, err)
	}
	if err := e.sink.Release(k); err != nil {
		e.stray[k] = true
		return true, fmt.Errorf("tap %s: %w: %w", k, ErrDevice, err)
	}
	delete(e.stray, k)
	return true, nil
}

func (e *Engine) acquire(k keyboard.Key) error {
	if e.refs[k] > 0 {
		e.refs[k]++
		if k.IsModifier() {
			return nil
		}
		if err := e.sink.Release(k); err != nil {
			e.refs[k]--
			return fmt.Errorf("re-strike %s: %w: %w", k, ErrDevice, err)
		}
		if err := e.sink.Press(k); err != nil {
			e.refs[k]--
			return fmt.Errorf("re-strike %s: %w: %w", k, ErrDevice, err)
		}
		return nil
	}
	if err := e.sink.Press(k); err != nil {
		return fmt.Errorf("press %s: %w: %w", k, ErrDevice, err)
	}
	delete(e.stray, k)
	e.refs[k] = 1
	return nil
}

func (e *Engine) release(k keyboard.Key) error {
	n := e.refs[k]
	if n == 0 {
		return nil
	}
	if n > 1 {
		e.refs[k] = n - 1
		return nil
	}
	delete(e.refs, k)
	if err := e.sink.Release(k); err != nil {
		e.stray[k] = true
		return fmt.Errorf("release %s: %w: %w", k, ErrDevice, err)
	}
	return nil
}

// releaseKeys releases keys in reverse press order, carrying on past errors.
func (e *Engine) releaseKeys(keys []keyboard.Key) error {
	var errs []error
	for i := len(keys) - 1; i >= 0; i-- {
		if err := e.release(keys[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) releaseAllLocked() error {
	notes := make([]scale.Note, 0, len(e.held))
	for n := range e.held {
		notes = append(notes, n)
	}
	slices.Sort(notes)

	var errs []error
	for _, n := range notes {
		if err := e.releaseKeys(e.held[n].Keys); err != nil {
			errs = append(errs, err)
		}
		delete(e.held, n)
	}
	// Anything still counted is a key no hold accounts for any more.
	for k := range e.refs {
		e.stray[k] = true
		delete(e.refs, k)
	}
	for _, k := range slices.Sorted(maps.Keys(e.stray)) {
		if err := e.sink.Release(k); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w: %w", k, ErrDevice, err))
			continue
		}
		delete(e.stray, k)
	}
	if len(notes) > 0 {
		e.logger.Debug("released all notes", "notes", len(notes))
	}
	return errors.Join(errs...)
}

// fail handles a device error: every other held key is released best-effort,
// holds are cleared, and the combined error is returned. Keys the sink would
// not release stay stray for the next ReleaseAll.
func (e *Engine) fail(cause error) error {
	e.stats.DeviceErrors++
	err := errors.Join(cause, e.releaseAllLocked())
	e.logger.Error("virtual keyboard failed, released all keys", "error", err)
	return err
}
