// Package settings is the live configuration surface shared between the
// control panel (writer) and the key-state engine (reader).
package settings

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Alia5/midikeys/keymap"
	"github.com/Alia5/midikeys/scale"
)

// Settings is an immutable snapshot of every toggle.
type Settings struct {
	Ranges                keymap.Ranges
	AutoTranspose         bool
	ExperimentalBlackKeys bool
	// TapDelay is the pause after each transposition tap in experimental mode.
	TapDelay time.Duration
}

// Mode returns the black-key mode selected by the snapshot.
func (s Settings) Mode() scale.Mode {
	if s.ExperimentalBlackKeys {
		return scale.ModeExperimental
	}
	return scale.ModeNormal
}

// Source is the read-only view handed to the engine.
type Source interface {
	Snapshot() Settings
}

// Store publishes snapshots atomically. Readers never block and never see a
// partially applied update; writers are serialized so no update is lost.
type Store struct {
	mu        sync.Mutex
	cur       atomic.Pointer[Settings]
	listeners []func(Settings)
}

// NewStore creates a store holding initial.
func NewStore(initial Settings) *Store {
	s := &Store{}
	s.cur.Store(&initial)
	return s
}

// Snapshot returns the current settings.
func (s *Store) Snapshot() Settings {
	return *s.cur.Load()
}

// OnChange registers f to be called with every new snapshot. Listeners run
// on the writer's goroutine, after the snapshot is published.
func (s *Store) OnChange(f func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, f)
}

// Update applies fn to a copy of the current snapshot and publishes it.
func (s *Store) Update(fn func(*Settings)) Settings {
	s.mu.Lock()
	next := *s.cur.Load()
	fn(&next)
	s.cur.Store(&next)
	listeners := append([]func(Settings){}, s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return next
}

func (s *Store) SetBaseEnabled(v bool) {
	s.Update(func(st *Settings) { st.Ranges.Base = v })
}

func (s *Store) SetLowExtendEnabled(v bool) {
	s.Update(func(st *Settings) { st.Ranges.Low = v })
}

func (s *Store) SetHighExtendEnabled(v bool) {
	s.Update(func(st *Settings) { st.Ranges.High = v })
}

func (s *Store) SetAutoTranspose(v bool) {
	s.Update(func(st *Settings) { st.AutoTranspose = v })
}

func (s *Store) SetExperimentalBlackKeys(v bool) {
	s.Update(func(st *Settings) { st.ExperimentalBlackKeys = v })
}

// SetTapDelay sets the experimental tap delay; negative values clamp to 0.
func (s *Store) SetTapDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.Update(func(st *Settings) { st.TapDelay = d })
}

// Static is a fixed Source, handy for tests and one-shot tools.
type Static Settings

func (s Static) Snapshot() Settings { return Settings(s) }
