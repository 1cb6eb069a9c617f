package keyboard_test

import (
	"testing"

	"github.com/Alia5/midikeys/keyboard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	type testCase struct {
		in      string
		want    keyboard.Key
		wantErr bool
	}

	cases := []testCase{
		{in: "q", want: keyboard.KeyQ},
		{in: "Q", want: keyboard.KeyQ},
		{in: "1", want: keyboard.Key1},
		{in: "LeftShift", want: keyboard.KeyLeftShift},
		{in: "leftshift", want: keyboard.KeyLeftShift},
		{in: "shift", want: keyboard.KeyLeftShift},
		{in: "ctrl", want: keyboard.KeyLeftCtrl},
		{in: " Up ", want: keyboard.KeyUp},
		{in: "0x14", want: keyboard.KeyQ},
		{in: "0x00", wantErr: true},
		{in: "", wantErr: true},
		{in: "nope", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := keyboard.ParseKey(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestKeyStringRoundTrip(t *testing.T) {
	for k := range keyboard.KeyName {
		got, err := keyboard.ParseKey(k.String())
		require.NoError(t, err, k.String())
		assert.Equal(t, k, got)
	}
	assert.Equal(t, "0xf0", keyboard.Key(0xF0).String())
}

func TestKeysFromString(t *testing.T) {
	keys, err := keyboard.KeysFromString("1qA")
	require.NoError(t, err)
	assert.Equal(t, []keyboard.Key{keyboard.Key1, keyboard.KeyQ, keyboard.KeyA}, keys)

	_, err = keyboard.KeysFromString("1!")
	assert.Error(t, err)
}

func TestInputState(t *testing.T) {
	var st keyboard.InputState
	assert.True(t, st.Empty())

	st.Press(keyboard.KeyLeftShift)
	st.Press(keyboard.KeyT)
	st.Press(keyboard.KeyA)
	assert.Equal(t, uint8(keyboard.ModLeftShift), st.Modifiers)
	assert.True(t, st.IsPressed(keyboard.KeyT))
	assert.Equal(t, []keyboard.Key{keyboard.KeyLeftShift, keyboard.KeyA, keyboard.KeyT}, st.Pressed())
	assert.Equal(t, "[LeftShift A T]", st.String())

	st.Release(keyboard.KeyLeftShift)
	st.Release(keyboard.KeyT)
	st.Release(keyboard.KeyA)
	assert.True(t, st.Empty())
}

func TestInputStateWireFormat(t *testing.T) {
	var st keyboard.InputState
	st.Press(keyboard.KeyLeftCtrl)
	st.Press(keyboard.Key1)

	b, err := st.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{keyboard.ModLeftCtrl, 1, byte(keyboard.Key1)}, b)

	var back keyboard.InputState
	require.NoError(t, back.UnmarshalBinary(b))
	assert.Equal(t, st, back)

	report := st.BuildReport()
	require.Len(t, report, 34)
	assert.Equal(t, byte(keyboard.ModLeftCtrl), report[0])
	assert.Equal(t, byte(1<<(keyboard.Key1%8)), report[2+keyboard.Key1/8])

	assert.Error(t, back.UnmarshalBinary([]byte{0}))
	assert.Error(t, back.UnmarshalBinary([]byte{0, 2, 4}))
}

func TestLEDState(t *testing.T) {
	var ls keyboard.LEDState
	require.NoError(t, ls.UnmarshalBinary([]byte{keyboard.LEDCapsLock | keyboard.LEDNumLock}))
	assert.True(t, ls.CapsLock)
	assert.True(t, ls.NumLock)
	assert.False(t, ls.ScrollLock)
}
