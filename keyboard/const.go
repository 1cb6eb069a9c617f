package keyboard

// Key is a HID usage code from the Keyboard/Keypad usage page.
// It is the unit the engine presses and releases.
type Key uint8

// Modifier key bitmasks, in the bit order of the HID report modifier byte.
const (
	ModLeftCtrl   = 0x01
	ModLeftShift  = 0x02
	ModLeftAlt    = 0x04
	ModLeftGUI    = 0x08 // Windows/Command key
	ModRightCtrl  = 0x10
	ModRightShift = 0x20
	ModRightAlt   = 0x40
	ModRightGUI   = 0x80
)

// LED bitmasks
const (
	LEDNumLock    = 0x01
	LEDCapsLock   = 0x02
	LEDScrollLock = 0x04
	LEDCompose    = 0x08
	LEDKana       = 0x10
)

// HID usage codes used by piano layouts. The usage page has more; layouts
// may name any code through ParseKey("0x..").
const (
	KeyNone Key = 0x00

	KeyA Key = 0x04
	KeyB Key = 0x05
	KeyC Key = 0x06
	KeyD Key = 0x07
	KeyE Key = 0x08
	KeyF Key = 0x09
	KeyG Key = 0x0A
	KeyH Key = 0x0B
	KeyI Key = 0x0C
	KeyJ Key = 0x0D
	KeyK Key = 0x0E
	KeyL Key = 0x0F
	KeyM Key = 0x10
	KeyN Key = 0x11
	KeyO Key = 0x12
	KeyP Key = 0x13
	KeyQ Key = 0x14
	KeyR Key = 0x15
	KeyS Key = 0x16
	KeyT Key = 0x17
	KeyU Key = 0x18
	KeyV Key = 0x19
	KeyW Key = 0x1A
	KeyX Key = 0x1B
	KeyY Key = 0x1C
	KeyZ Key = 0x1D

	Key1 Key = 0x1E
	Key2 Key = 0x1F
	Key3 Key = 0x20
	Key4 Key = 0x21
	Key5 Key = 0x22
	Key6 Key = 0x23
	Key7 Key = 0x24
	Key8 Key = 0x25
	Key9 Key = 0x26
	Key0 Key = 0x27

	KeyEnter      Key = 0x28
	KeyEscape     Key = 0x29
	KeyBackspace  Key = 0x2A
	KeyTab        Key = 0x2B
	KeySpace      Key = 0x2C
	KeyMinus      Key = 0x2D // - and _
	KeyEqual      Key = 0x2E // = and +
	KeyLeftBrace  Key = 0x2F // [ and {
	KeyRightBrace Key = 0x30 // ] and }
	KeyBackslash  Key = 0x31 // \ and |
	KeySemicolon  Key = 0x33 // ; and :
	KeyApostrophe Key = 0x34 // ' and "
	KeyGrave      Key = 0x35 // ` and ~
	KeyComma      Key = 0x36 // , and <
	KeyPeriod     Key = 0x37 // . and >
	KeySlash      Key = 0x38 // / and ?
	KeyCapsLock   Key = 0x39

	KeyF1  Key = 0x3A
	KeyF2  Key = 0x3B
	KeyF3  Key = 0x3C
	KeyF4  Key = 0x3D
	KeyF5  Key = 0x3E
	KeyF6  Key = 0x3F
	KeyF7  Key = 0x40
	KeyF8  Key = 0x41
	KeyF9  Key = 0x42
	KeyF10 Key = 0x43
	KeyF11 Key = 0x44
	KeyF12 Key = 0x45

	KeyInsert   Key = 0x49
	KeyHome     Key = 0x4A
	KeyPageUp   Key = 0x4B
	KeyDelete   Key = 0x4C
	KeyEnd      Key = 0x4D
	KeyPageDown Key = 0x4E

	KeyRight Key = 0x4F
	KeyLeft  Key = 0x50
	KeyDown  Key = 0x51
	KeyUp    Key = 0x52

	// Modifier usages. In a report they live in the modifier byte, not the
	// key bitmap.
	KeyLeftCtrl   Key = 0xE0
	KeyLeftShift  Key = 0xE1
	KeyLeftAlt    Key = 0xE2
	KeyLeftGUI    Key = 0xE3
	KeyRightCtrl  Key = 0xE4
	KeyRightShift Key = 0xE5
	KeyRightAlt   Key = 0xE6
	KeyRightGUI   Key = 0xE7
)

// IsModifier reports whether k is one of the eight modifier usages.
func (k Key) IsModifier() bool {
	return k >= KeyLeftCtrl && k <= KeyRightGUI
}

// ModifierBit returns the report modifier bit for k, or 0 for ordinary keys.
func (k Key) ModifierBit() uint8 {
	if !k.IsModifier() {
		return 0
	}
	return 1 << (k - KeyLeftCtrl)
}
