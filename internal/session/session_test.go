package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Alia5/midikeys/engine"
	"github.com/Alia5/midikeys/internal/log"
	"github.com/Alia5/midikeys/internal/midiin"
	itesting "github.com/Alia5/midikeys/internal/testing"
	"github.com/Alia5/midikeys/keyboard"
	"github.com/Alia5/midikeys/keymap"
	"github.com/Alia5/midikeys/scale"
	"github.com/Alia5/midikeys/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	h       func(midiin.Event)
	opened  []string
	stopped int
	err     error
}

func (f *fakeSource) Open(id string, h func(midiin.Event)) (string, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", nil, f.err
	}
	f.h = h
	f.opened = append(f.opened, id)
	return "Fake Piano " + id, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.h = nil
		f.stopped++
	}, nil
}

func (f *fakeSource) send(ev midiin.Event) {
	f.mu.Lock()
	h := f.h
	f.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (f *fakeSource) on(n scale.Note) {
	f.send(midiin.Event{Kind: midiin.NoteOn, Channel: 1, Note: n, Velocity: 100})
}

func (f *fakeSource) off(n scale.Note) {
	f.send(midiin.Event{Kind: midiin.NoteOff, Channel: 1, Note: n})
}

type fixture struct {
	s    *Session
	src  *fakeSource
	sink *itesting.RecordingSink
	eng  *engine.Engine
	stop context.CancelFunc
	ran  chan error
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	km, err := keymap.New(keymap.Default())
	require.NoError(t, err)
	sink := itesting.NewRecordingSink()
	eng := engine.New(km, settings.Static{Ranges: keymap.Ranges{Base: true, Low: true, High: true}}, sink,
		engine.WithLogger(log.Discard()))
	src := &fakeSource{}
	opts = append([]Option{WithLogger(log.Discard())}, opts...)

	ctx, cancel := context.WithCancel(t.Context())
	f := &fixture{s: New(src, eng, opts...), src: src, sink: sink, eng: eng, stop: cancel, ran: make(chan error, 1)}
	go func() { f.ran <- f.s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-f.ran
	})
	return f
}

// flush waits until every event queued so far has been applied.
func (f *fixture) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, f.s.do(t.Context(), func() error { return nil }))
}

func waitStatus(t *testing.T, s *Session, kind StatusKind) Status {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case st := <-s.Status():
			if st.Kind == kind {
				return st
			}
		case <-timeout:
			t.Fatalf("no %s status", kind)
		}
	}
}

func TestEventsAppliedInOrder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.Connect(t.Context(), "1"))
	assert.True(t, f.s.Connected())
	assert.Equal(t, "Fake Piano 1", f.s.Port())

	f.src.on(60)
	f.src.on(62)
	f.src.off(60)
	f.flush(t)

	assert.Equal(t, []itesting.Op{
		itesting.P(keyboard.KeyT),
		itesting.P(keyboard.KeyY),
		itesting.R(keyboard.KeyT),
	}, f.sink.Ops())
	assert.Equal(t, []scale.Note{62}, f.s.Sounding())
}

func TestDisconnectReleasesEverything(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.Connect(t.Context(), "1"))
	f.src.on(21)
	f.src.on(60)
	f.src.on(99)

	require.NoError(t, f.s.Disconnect(t.Context()))
	assert.False(t, f.s.Connected())
	assert.Empty(t, f.s.Port())
	assert.Empty(t, f.sink.Pressed())
	assert.Empty(t, f.sink.Balance())
	assert.Empty(t, f.s.Sounding())
	assert.Empty(t, f.eng.Holds())
	assert.Equal(t, 1, f.src.stopped)

	// Events arriving after disconnect go nowhere.
	f.src.on(62)
	f.flush(t)
	assert.Empty(t, f.sink.Pressed())

	waitStatus(t, f.s, Disconnected)
}

func TestDisconnectWhenIdle(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.Disconnect(t.Context()))
	assert.Equal(t, 0, f.src.stopped)
}

func TestReconnectReleasesFirst(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.Connect(t.Context(), "1"))
	f.src.on(60)
	f.flush(t)
	require.NotEmpty(t, f.sink.Pressed())

	require.NoError(t, f.s.Connect(t.Context(), "2"))
	assert.Empty(t, f.sink.Pressed())
	assert.Equal(t, []string{"1", "2"}, f.src.opened)
	assert.Equal(t, "Fake Piano 2", f.s.Port())
}

func TestConnectError(t *testing.T) {
	f := newFixture(t)
	f.src.err = midiin.ErrNoPort
	err := f.s.Connect(t.Context(), "nope")
	require.ErrorIs(t, err, midiin.ErrNoPort)
	assert.False(t, f.s.Connected())
}

func TestReleaseKeysKeepsInput(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.Connect(t.Context(), "1"))
	f.src.on(60)
	f.src.on(61)

	require.NoError(t, f.s.ReleaseKeys(t.Context()))
	assert.Empty(t, f.sink.Pressed())
	assert.True(t, f.s.Connected())
	waitStatus(t, f.s, Released)

	// The stale note-off is ignored, the input keeps working.
	f.src.off(60)
	f.src.on(64)
	f.flush(t)
	assert.Equal(t, []keyboard.Key{keyboard.KeyU}, f.sink.Pressed())
}

func TestDeviceErrorIsReported(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.Connect(t.Context(), "1"))
	f.sink.FailKey(keyboard.KeyT)

	f.src.on(60)
	st := waitStatus(t, f.s, DeviceError)
	require.ErrorIs(t, st.Err, engine.ErrDevice)
	require.ErrorIs(t, st.Err, itesting.ErrInjected)

	// The loop keeps going.
	f.sink.Heal()
	f.src.on(64)
	f.flush(t)
	assert.Equal(t, []keyboard.Key{keyboard.KeyU}, f.sink.Pressed())
}

func TestShutdownReleasesKeys(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.Connect(t.Context(), "1"))
	f.src.on(21)
	f.src.on(61)
	f.src.on(100)

	f.stop()
	require.NoError(t, <-f.ran)
	f.ran <- nil

	assert.Empty(t, f.sink.Pressed())
	assert.Equal(t, 1, f.src.stopped)
	assert.False(t, f.s.Connected())

	err := f.s.ReleaseKeys(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestQuantizeDelaysNoteOn(t *testing.T) {
	const grid = 40 * time.Millisecond
	start := time.Now()
	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 1 {
			return start
		}
		// Always a quarter of the way into a grid slot.
		return start.Add(grid / 4)
	}
	f := newFixture(t, WithQuantize(grid), WithClock(clock))
	require.NoError(t, f.s.Connect(t.Context(), "1"))

	began := time.Now()
	f.src.on(60)
	f.flush(t)
	assert.GreaterOrEqual(t, time.Since(began), grid*3/4-5*time.Millisecond)
	assert.Equal(t, []keyboard.Key{keyboard.KeyT}, f.sink.Pressed())

	// A note-off with nothing waiting ahead of it goes straight through.
	began = time.Now()
	f.src.off(60)
	f.flush(t)
	assert.Less(t, time.Since(began), grid/2)
	assert.Empty(t, f.sink.Pressed())
}

func TestQuantizeKeepsNoteOffBehindItsNoteOn(t *testing.T) {
	const grid = 30 * time.Millisecond
	start := time.Now()
	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 1 {
			return start
		}
		return start.Add(grid / 4)
	}
	f := newFixture(t, WithQuantize(grid), WithClock(clock))
	require.NoError(t, f.s.Connect(t.Context(), "1"))

	// A quick tap: the note-off is queued while the note-on still waits.
	f.src.on(60)
	f.src.off(60)
	f.flush(t)

	assert.Equal(t, []itesting.Op{
		itesting.P(keyboard.KeyT),
		itesting.R(keyboard.KeyT),
	}, f.sink.Ops())
	assert.Empty(t, f.sink.Pressed())
	assert.Empty(t, f.s.Sounding())
}

func TestConcurrentConnect(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for _, id := range []string{"1", "2", "3", "4"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.s.Connect(t.Context(), id))
		}()
	}
	wg.Wait()

	f.src.mu.Lock()
	open := len(f.src.opened) - f.src.stopped
	f.src.mu.Unlock()
	assert.Equal(t, 1, open)
	assert.True(t, f.s.Connected())

	require.NoError(t, f.s.Disconnect(t.Context()))
	assert.Equal(t, 4, f.src.stopped)
}

func TestConnectAfterShutdown(t *testing.T) {
	f := newFixture(t)
	f.stop()
	require.NoError(t, <-f.ran)
	f.ran <- nil

	err := f.s.Connect(context.Background(), "1")
	require.ErrorIs(t, err, ErrClosed)
	assert.False(t, f.s.Connected())
	assert.Equal(t, len(f.src.opened), f.src.stopped)
}

func TestStatusKindString(t *testing.T) {
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "device error", DeviceError.String())
	assert.Equal(t, "keys released", Released.String())
	assert.Equal(t, "unknown", StatusKind(42).String())
}
