// Package keyboard models the emulated keyboard: HID usage codes, key names
// and the N-key-rollover state that virtual keyboard devices consume.
package keyboard

import (
	"io"
	"strings"
)

// InputState represents the keyboard state used to build a report.
// Internally uses a 256-bit bitmap for N-key rollover support.
type InputState struct {
	Modifiers uint8     // bit 0-7: LCtrl, LShift, LAlt, LGui, RCtrl, RShift, RAlt, RGui
	KeyBitmap [32]uint8 // 256 bits for HID usage codes 0x00-0xFF
}

// LEDState represents the state of keyboard LEDs controlled by the host.
type LEDState struct {
	NumLock    bool
	CapsLock   bool
	ScrollLock bool
	Compose    bool
	Kana       bool
}

// Press marks k as held. Modifier usages set their bit in Modifiers.
func (st *InputState) Press(k Key) {
	if bit := k.ModifierBit(); bit != 0 {
		st.Modifiers |= bit
		return
	}
	st.KeyBitmap[k/8] |= 1 << (k % 8)
}

// Release clears k.
func (st *InputState) Release(k Key) {
	if bit := k.ModifierBit(); bit != 0 {
		st.Modifiers &^= bit
		return
	}
	st.KeyBitmap[k/8] &^= 1 << (k % 8)
}

// IsPressed reports whether k is currently held.
func (st *InputState) IsPressed(k Key) bool {
	if bit := k.ModifierBit(); bit != 0 {
		return st.Modifiers&bit != 0
	}
	return st.KeyBitmap[k/8]&(1<<(k%8)) != 0
}

// Pressed lists held keys: modifiers first, then bitmap keys in usage order.
func (st *InputState) Pressed() []Key {
	var keys []Key
	for k := KeyLeftCtrl; k <= KeyRightGUI; k++ {
		if st.Modifiers&k.ModifierBit() != 0 {
			keys = append(keys, k)
		}
	}
	for i := 0; i < 256; i++ {
		if st.KeyBitmap[i/8]&(1<<uint(i%8)) != 0 {
			keys = append(keys, Key(i))
		}
	}
	return keys
}

// Empty reports whether nothing is held.
func (st *InputState) Empty() bool {
	if st.Modifiers != 0 {
		return false
	}
	for _, b := range st.KeyBitmap {
		if b != 0 {
			return false
		}
	}
	return true
}

func (st InputState) String() string {
	keys := st.Pressed()
	if len(keys) == 0 {
		return "[]"
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return "[" + strings.Join(names, " ") + "]"
}

// UnmarshalBinary decodes a 1-byte LED bitmask into LEDState.
func (ls *LEDState) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return io.ErrUnexpectedEOF
	}
	b := data[0]
	ls.NumLock = b&LEDNumLock != 0
	ls.CapsLock = b&LEDCapsLock != 0
	ls.ScrollLock = b&LEDScrollLock != 0
	ls.Compose = b&LEDCompose != 0
	ls.Kana = b&LEDKana != 0
	return nil
}

// BuildReport encodes an InputState into the 34-byte HID keyboard report.
//
// Report layout (34 bytes):
//
//	Byte 0: Modifiers (8 bits)
//	Byte 1: Reserved (0x00)
//	Bytes 2-33: Key bitmap (256 bits, 32 bytes)
func (st InputState) BuildReport() []byte {
	b := make([]byte, 34)
	b[0] = st.Modifiers
	copy(b[2:34], st.KeyBitmap[:])
	return b
}

// MarshalBinary encodes InputState to the variable-length stream format.
//
// Wire format:
//
//	Byte 0: Modifiers
//	Byte 1: Key count
//	Bytes 2+: Key codes (HID usage codes of pressed keys)
func (st *InputState) MarshalBinary() ([]byte, error) {
	b := []byte{st.Modifiers, 0}
	for i := 0; i < 256; i++ {
		if st.KeyBitmap[i/8]&(1<<uint(i%8)) != 0 {
			b = append(b, uint8(i))
		}
	}
	b[1] = uint8(len(b) - 2)
	return b, nil
}

// UnmarshalBinary decodes the stream format produced by MarshalBinary.
func (st *InputState) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return io.ErrUnexpectedEOF
	}
	count := int(data[1])
	if len(data) < 2+count {
		return io.ErrUnexpectedEOF
	}
	*st = InputState{Modifiers: data[0]}
	for _, code := range data[2 : 2+count] {
		st.KeyBitmap[code/8] |= 1 << (code % 8)
	}
	return nil
}
