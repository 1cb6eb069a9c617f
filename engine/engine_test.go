package engine_test

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/Alia5/midikeys/engine"
	itesting "github.com/Alia5/midikeys/internal/testing"
	"github.com/Alia5/midikeys/keyboard"
	"github.com/Alia5/midikeys/keymap"
	"github.com/Alia5/midikeys/scale"
	"github.com/Alia5/midikeys/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	P = itesting.P
	R = itesting.R
)

func allRanges() keymap.Ranges { return keymap.Ranges{Base: true, Low: true, High: true} }

func newEngine(t *testing.T, st settings.Settings, opts ...engine.Option) (*engine.Engine, *itesting.RecordingSink, *settings.Store) {
	t.Helper()
	km, err := keymap.New(keymap.Default())
	require.NoError(t, err)
	store := settings.NewStore(st)
	sink := itesting.NewRecordingSink()
	return engine.New(km, store, sink, opts...), sink, store
}

func TestNoteOnOff(t *testing.T) {
	type testCase struct {
		name    string
		st      settings.Settings
		note    scale.Note
		onOps   []itesting.Op
		offOps  []itesting.Op
		dropped bool
	}

	cases := []testCase{
		{
			name:   "white base note",
			st:     settings.Settings{Ranges: allRanges()},
			note:   60,
			onOps:  []itesting.Op{P(keyboard.KeyT)},
			offOps: []itesting.Op{R(keyboard.KeyT)},
		},
		{
			name:   "black base note holds shift",
			st:     settings.Settings{Ranges: allRanges()},
			note:   61,
			onOps:  []itesting.Op{P(keyboard.KeyLeftShift), P(keyboard.KeyT)},
			offOps: []itesting.Op{R(keyboard.KeyT), R(keyboard.KeyLeftShift)},
		},
		{
			name:   "low band holds ctrl",
			st:     settings.Settings{Ranges: allRanges()},
			note:   21,
			onOps:  []itesting.Op{P(keyboard.KeyLeftCtrl), P(keyboard.Key1)},
			offOps: []itesting.Op{R(keyboard.Key1), R(keyboard.KeyLeftCtrl)},
		},
		{
			name:   "high band top note",
			st:     settings.Settings{Ranges: allRanges()},
			note:   108,
			onOps:  []itesting.Op{P(keyboard.KeyLeftCtrl), P(keyboard.KeyJ)},
			offOps: []itesting.Op{R(keyboard.KeyJ), R(keyboard.KeyLeftCtrl)},
		},
		{
			name:    "low band disabled drops",
			st:      settings.Settings{Ranges: keymap.Ranges{Base: true}},
			note:    21,
			dropped: true,
		},
		{
			name:   "low note transposed into base",
			st:     settings.Settings{Ranges: keymap.Ranges{Base: true}, AutoTranspose: true},
			note:   21,
			onOps:  []itesting.Op{P(keyboard.Key6)},
			offOps: []itesting.Op{R(keyboard.Key6)},
		},
		{
			name:   "high note transposed down",
			st:     settings.Settings{Ranges: keymap.Ranges{Base: true}, AutoTranspose: true},
			note:   108,
			onOps:  []itesting.Op{P(keyboard.KeyM)},
			offOps: []itesting.Op{R(keyboard.KeyM)},
		},
		{
			name:    "everything disabled drops",
			st:      settings.Settings{AutoTranspose: true},
			note:    60,
			dropped: true,
		},
		{
			name:    "below every band without transpose",
			st:      settings.Settings{Ranges: allRanges()},
			note:    5,
			dropped: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, sink, _ := newEngine(t, tc.st)

			require.NoError(t, e.NoteOn(tc.note, 100))
			assert.Equal(t, tc.onOps, sink.Ops())
			if tc.dropped {
				assert.Empty(t, e.Holds())
				assert.Equal(t, uint64(1), e.Stats().Dropped)
			}

			sink.Reset()
			require.NoError(t, e.NoteOff(tc.note))
			assert.Equal(t, tc.offOps, sink.Ops())
			assert.Empty(t, sink.Pressed())
			assert.Empty(t, e.Holds())
		})
	}
}

func TestTransposedHoldRecordsTarget(t *testing.T) {
	e, _, _ := newEngine(t, settings.Settings{Ranges: keymap.Ranges{Base: true}, AutoTranspose: true})

	require.NoError(t, e.NoteOn(21, 100))
	holds := e.Holds()
	require.Len(t, holds, 1)
	assert.Equal(t, scale.Note(21), holds[0].Note)
	assert.Equal(t, scale.Note(45), holds[0].Target)
	assert.Equal(t, uint64(1), e.Stats().Transposed)
}

func TestExperimentalBlackKeys(t *testing.T) {
	var slept []time.Duration
	e, sink, _ := newEngine(t,
		settings.Settings{Ranges: allRanges(), ExperimentalBlackKeys: true, TapDelay: 5 * time.Millisecond},
		engine.WithSleep(func(d time.Duration) { slept = append(slept, d) }),
	)

	require.NoError(t, e.NoteOn(61, 100))
	assert.Equal(t, []itesting.Op{
		P(keyboard.KeyUp), R(keyboard.KeyUp),
		P(keyboard.KeyT),
		P(keyboard.KeyDown), R(keyboard.KeyDown),
	}, sink.Ops())
	assert.Equal(t, []keyboard.Key{keyboard.KeyT}, sink.Pressed())
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, slept)

	sink.Reset()
	require.NoError(t, e.NoteOff(61))
	assert.Equal(t, []itesting.Op{R(keyboard.KeyT)}, sink.Ops())
}

func TestExperimentalWithoutTransposeKeysFallsBack(t *testing.T) {
	l := keymap.Default()
	l.TransposeUp, l.TransposeDown = keyboard.KeyNone, keyboard.KeyNone
	km, err := keymap.New(l)
	require.NoError(t, err)
	sink := itesting.NewRecordingSink()
	e := engine.New(km, settings.Static{Ranges: allRanges(), ExperimentalBlackKeys: true}, sink)

	require.NoError(t, e.NoteOn(61, 100))
	assert.Equal(t, []itesting.Op{P(keyboard.KeyLeftShift), P(keyboard.KeyT)}, sink.Ops())
}

func TestNoteOffReplaysRecordedKeys(t *testing.T) {
	t.Run("mode switched while held", func(t *testing.T) {
		e, sink, store := newEngine(t, settings.Settings{Ranges: allRanges()})
		require.NoError(t, e.NoteOn(61, 100))
		store.SetExperimentalBlackKeys(true)
		sink.Reset()

		require.NoError(t, e.NoteOff(61))
		assert.Equal(t, []itesting.Op{R(keyboard.KeyT), R(keyboard.KeyLeftShift)}, sink.Ops())
		assert.Empty(t, sink.Pressed())
	})

	t.Run("range disabled while held", func(t *testing.T) {
		e, sink, store := newEngine(t, settings.Settings{Ranges: allRanges()})
		require.NoError(t, e.NoteOn(21, 100))
		store.SetLowExtendEnabled(false)
		sink.Reset()

		require.NoError(t, e.NoteOff(21))
		assert.Equal(t, []itesting.Op{R(keyboard.Key1), R(keyboard.KeyLeftCtrl)}, sink.Ops())
		assert.Empty(t, sink.Pressed())
	})

	t.Run("transpose turned off while held", func(t *testing.T) {
		e, sink, store := newEngine(t, settings.Settings{Ranges: keymap.Ranges{Base: true}, AutoTranspose: true})
		require.NoError(t, e.NoteOn(108, 100))
		store.SetAutoTranspose(false)
		sink.Reset()

		require.NoError(t, e.NoteOff(108))
		assert.Equal(t, []itesting.Op{R(keyboard.KeyM)}, sink.Ops())
	})
}

func TestRepeatedNoteOnRekeys(t *testing.T) {
	e, sink, _ := newEngine(t, settings.Settings{Ranges: allRanges()})

	require.NoError(t, e.NoteOn(60, 100))
	require.NoError(t, e.NoteOn(60, 90))
	assert.Equal(t, []itesting.Op{P(keyboard.KeyT), R(keyboard.KeyT), P(keyboard.KeyT)}, sink.Ops())
	assert.Equal(t, uint64(1), e.Stats().StaleHolds)

	require.NoError(t, e.NoteOff(60))
	assert.Empty(t, sink.Pressed())
}

func TestSpuriousNoteOff(t *testing.T) {
	e, sink, _ := newEngine(t, settings.Settings{Ranges: allRanges()})

	require.NoError(t, e.NoteOff(60))
	require.NoError(t, e.NoteOn(60, 100))
	require.NoError(t, e.NoteOff(60))
	require.NoError(t, e.NoteOff(60))

	assert.Equal(t, []itesting.Op{P(keyboard.KeyT), R(keyboard.KeyT)}, sink.Ops())
	assert.Equal(t, uint64(2), e.Stats().SpuriousOffs)
}

func TestSharedPhysicalKey(t *testing.T) {
	// A0 is Ctrl+1 and C2 is 1.
	e, sink, _ := newEngine(t, settings.Settings{Ranges: allRanges()})

	require.NoError(t, e.NoteOn(21, 100))
	sink.Reset()

	// C2 re-strikes the shared key so it still produces a key-down.
	require.NoError(t, e.NoteOn(36, 100))
	assert.Equal(t, []itesting.Op{R(keyboard.Key1), P(keyboard.Key1)}, sink.Ops())
	assert.ElementsMatch(t, []keyboard.Key{keyboard.KeyLeftCtrl, keyboard.Key1}, sink.Pressed())

	sink.Reset()
	require.NoError(t, e.NoteOff(21))
	assert.Equal(t, []itesting.Op{R(keyboard.KeyLeftCtrl)}, sink.Ops())
	assert.Equal(t, []keyboard.Key{keyboard.Key1}, sink.Pressed())

	sink.Reset()
	require.NoError(t, e.NoteOff(36))
	assert.Equal(t, []itesting.Op{R(keyboard.Key1)}, sink.Ops())
	assert.Empty(t, sink.Pressed())
}

func TestSharedModifier(t *testing.T) {
	e, sink, _ := newEngine(t, settings.Settings{Ranges: allRanges()})

	require.NoError(t, e.NoteOn(61, 100))
	require.NoError(t, e.NoteOn(63, 100))
	require.NoError(t, e.NoteOff(61))
	assert.ElementsMatch(t, []keyboard.Key{keyboard.KeyLeftShift, keyboard.KeyY}, sink.Pressed())

	require.NoError(t, e.NoteOff(63))
	assert.Empty(t, sink.Pressed())
}

func TestReleaseAll(t *testing.T) {
	e, sink, _ := newEngine(t, settings.Settings{Ranges: allRanges()})
	for _, n := range []scale.Note{21, 36, 60, 61, 100} {
		require.NoError(t, e.NoteOn(n, 100))
	}
	require.NotEmpty(t, sink.Pressed())

	require.NoError(t, e.ReleaseAll())
	assert.Empty(t, sink.Pressed())
	assert.Empty(t, sink.Balance())
	assert.Empty(t, e.Holds())

	sink.Reset()
	require.NoError(t, e.ReleaseAll())
	assert.Empty(t, sink.Ops())
}

func TestDeviceFailure(t *testing.T) {
	t.Run("press fails mid stroke", func(t *testing.T) {
		e, sink, _ := newEngine(t, settings.Settings{Ranges: allRanges()})
		sink.FailKey(keyboard.KeyT)

		err := e.NoteOn(61, 100)
		require.Error(t, err)
		assert.ErrorIs(t, err, engine.ErrDevice)
		assert.ErrorIs(t, err, itesting.ErrInjected)
		assert.Empty(t, sink.Pressed())
		assert.Empty(t, e.Holds())
		assert.Equal(t, uint64(1), e.Stats().DeviceErrors)
	})

	t.Run("failure releases other notes", func(t *testing.T) {
		e, sink, _ := newEngine(t, settings.Settings{Ranges: allRanges()})
		require.NoError(t, e.NoteOn(60, 100))
		require.NoError(t, e.NoteOn(40, 100))
		sink.FailKey(keyboard.KeyLeftShift)

		err := e.NoteOn(61, 100)
		assert.ErrorIs(t, err, engine.ErrDevice)
		assert.Empty(t, sink.Pressed())
		assert.Empty(t, e.Holds())
	})

	t.Run("release failure is reported and state cleared", func(t *testing.T) {
		e, sink, _ := newEngine(t, settings.Settings{Ranges: allRanges()})
		require.NoError(t, e.NoteOn(60, 100))
		require.NoError(t, e.NoteOn(62, 100))
		sink.FailKey(keyboard.KeyT)

		err := e.NoteOff(60)
		assert.ErrorIs(t, err, engine.ErrDevice)
		assert.Empty(t, e.Holds())
		assert.Equal(t, []keyboard.Key{keyboard.KeyT}, sink.Pressed())

		sink.Heal()
		require.NoError(t, e.NoteOn(60, 100))
		require.NoError(t, e.NoteOff(60))
		assert.Empty(t, sink.Pressed())
	})

	t.Run("stray key is retried by release all", func(t *testing.T) {
		e, sink, _ := newEngine(t, settings.Settings{Ranges: allRanges()})
		require.NoError(t, e.NoteOn(60, 100))
		sink.FailKey(keyboard.KeyT)
		require.Error(t, e.NoteOff(60))
		require.Error(t, e.ReleaseAll())
		assert.Equal(t, []keyboard.Key{keyboard.KeyT}, sink.Pressed())

		sink.Heal()
		require.NoError(t, e.ReleaseAll())
		assert.Empty(t, sink.Pressed())
	})

	t.Run("tap release fails", func(t *testing.T) {
		e, sink, _ := newEngine(t, settings.Settings{Ranges: allRanges(), ExperimentalBlackKeys: true})
		sink.FailAfter(1)

		err := e.NoteOn(61, 100)
		assert.ErrorIs(t, err, engine.ErrDevice)
		assert.Equal(t, []keyboard.Key{keyboard.KeyUp}, sink.Pressed())
		assert.Empty(t, e.Holds())

		sink.Heal()
		require.NoError(t, e.ReleaseAll())
		assert.Empty(t, sink.Pressed())
		assert.Empty(t, sink.Balance())
	})

	t.Run("hold fails after lead tap", func(t *testing.T) {
		e, sink, _ := newEngine(t, settings.Settings{Ranges: allRanges(), ExperimentalBlackKeys: true})
		sink.FailKey(keyboard.KeyT)

		err := e.NoteOn(61, 100)
		assert.ErrorIs(t, err, engine.ErrDevice)
		assert.Equal(t, []itesting.Op{
			P(keyboard.KeyUp), R(keyboard.KeyUp),
			P(keyboard.KeyDown), R(keyboard.KeyDown),
		}, sink.Ops())
		assert.Empty(t, sink.Pressed())
	})

	t.Run("tap fails", func(t *testing.T) {
		e, sink, _ := newEngine(t, settings.Settings{Ranges: allRanges(), ExperimentalBlackKeys: true})
		sink.FailKey(keyboard.KeyDown)

		err := e.NoteOn(61, 100)
		assert.True(t, errors.Is(err, engine.ErrDevice))
		assert.Empty(t, sink.Pressed())
	})
}

// Random events and random configuration changes must never strand a key.
func TestNoStuckKeys(t *testing.T) {
	e, sink, store := newEngine(t, settings.Settings{Ranges: allRanges()})
	rng := rand.New(rand.NewSource(1))

	toggles := []func(bool){
		store.SetBaseEnabled,
		store.SetLowExtendEnabled,
		store.SetHighExtendEnabled,
		store.SetAutoTranspose,
		store.SetExperimentalBlackKeys,
	}

	for i := 0; i < 5000; i++ {
		n := scale.Note(rng.Intn(128))
		switch r := rng.Intn(10); {
		case r < 5:
			require.NoError(t, e.NoteOn(n, 100))
		case r < 9:
			require.NoError(t, e.NoteOff(n))
		default:
			toggles[rng.Intn(len(toggles))](rng.Intn(2) == 0)
		}
	}
	for n := 0; n < 128; n++ {
		require.NoError(t, e.NoteOff(scale.Note(n)))
	}

	assert.Empty(t, sink.Pressed())
	assert.Empty(t, sink.Balance())
	assert.Empty(t, e.Holds())
}

func TestConcurrentEvents(t *testing.T) {
	e, sink, store := newEngine(t, settings.Settings{Ranges: allRanges(), AutoTranspose: true})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 500; i++ {
				n := scale.Note(rng.Intn(128))
				_ = e.NoteOn(n, 64)
				_ = e.NoteOff(n)
			}
		}(int64(g))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			store.SetExperimentalBlackKeys(i%2 == 0)
		}
	}()
	wg.Wait()

	require.NoError(t, e.ReleaseAll())
	assert.Empty(t, sink.Pressed())
}
