// Package testing holds test doubles shared across packages.
package testing

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Alia5/midikeys/keyboard"
)

// ErrInjected is returned by a RecordingSink once a failure is armed.
var ErrInjected = errors.New("injected sink failure")

// Op is one call made against a RecordingSink.
type Op struct {
	Press bool
	Key   keyboard.Key
}

func (o Op) String() string {
	if o.Press {
		return "+" + o.Key.String()
	}
	return "-" + o.Key.String()
}

// P and R build expected ops for assertions.
func P(k keyboard.Key) Op { return Op{Press: true, Key: k} }
func R(k keyboard.Key) Op { return Op{Press: false, Key: k} }

// RecordingSink is an in-memory virtual keyboard. It records every
// successful call and keeps the resulting key state.
type RecordingSink struct {
	mu    sync.Mutex
	ops   []Op
	state keyboard.InputState
	// failAt counts down successful calls before the next one fails; -1 is off.
	failAt int
	// failKey fails every call touching that key when set.
	failKey keyboard.Key
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{failAt: -1}
}

// FailAfter makes the call after n more successful calls fail, and every
// call after it.
func (s *RecordingSink) FailAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt = n
}

// FailKey makes every call for k fail. KeyNone clears it.
func (s *RecordingSink) FailKey(k keyboard.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKey = k
}

// Heal turns all failure injection off.
func (s *RecordingSink) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAt = -1
	s.failKey = keyboard.KeyNone
}

func (s *RecordingSink) Press(k keyboard.Key) error {
	return s.do(Op{Press: true, Key: k})
}

func (s *RecordingSink) Release(k keyboard.Key) error {
	return s.do(Op{Press: false, Key: k})
}

func (s *RecordingSink) do(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failKey != keyboard.KeyNone && op.Key == s.failKey {
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	if s.failAt == 0 {
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	if s.failAt > 0 {
		s.failAt--
	}
	s.ops = append(s.ops, op)
	if op.Press {
		s.state.Press(op.Key)
	} else {
		s.state.Release(op.Key)
	}
	return nil
}

// Ops returns the recorded calls in order.
func (s *RecordingSink) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Op(nil), s.ops...)
}

// Reset forgets recorded calls but keeps the key state.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = nil
}

// Pressed returns the keys currently down.
func (s *RecordingSink) Pressed() []keyboard.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Pressed()
}

// State returns the current key state.
func (s *RecordingSink) State() keyboard.InputState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Balance returns presses minus releases per key over all recorded calls.
func (s *RecordingSink) Balance() map[keyboard.Key]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[keyboard.Key]int{}
	for _, op := range s.ops {
		if op.Press {
			out[op.Key]++
		} else {
			out[op.Key]--
		}
		if out[op.Key] == 0 {
			delete(out, op.Key)
		}
	}
	return out
}
