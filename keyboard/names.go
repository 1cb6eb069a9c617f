package keyboard

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyName maps HID usage codes to human-readable key names.
var KeyName = map[Key]string{
	KeyA: "A", KeyB: "B", KeyC: "C", KeyD: "D", KeyE: "E", KeyF: "F", KeyG: "G",
	KeyH: "H", KeyI: "I", KeyJ: "J", KeyK: "K", KeyL: "L", KeyM: "M", KeyN: "N",
	KeyO: "O", KeyP: "P", KeyQ: "Q", KeyR: "R", KeyS: "S", KeyT: "T", KeyU: "U",
	KeyV: "V", KeyW: "W", KeyX: "X", KeyY: "Y", KeyZ: "Z",

	Key1: "1", Key2: "2", Key3: "3", Key4: "4", Key5: "5",
	Key6: "6", Key7: "7", Key8: "8", Key9: "9", Key0: "0",

	KeyEnter:      "Enter",
	KeyEscape:     "Escape",
	KeyBackspace:  "Backspace",
	KeyTab:        "Tab",
	KeySpace:      "Space",
	KeyMinus:      "Minus",
	KeyEqual:      "Equal",
	KeyLeftBrace:  "LeftBrace",
	KeyRightBrace: "RightBrace",
	KeyBackslash:  "Backslash",
	KeySemicolon:  "Semicolon",
	KeyApostrophe: "Apostrophe",
	KeyGrave:      "Grave",
	KeyComma:      "Comma",
	KeyPeriod:     "Period",
	KeySlash:      "Slash",
	KeyCapsLock:   "CapsLock",

	KeyF1: "F1", KeyF2: "F2", KeyF3: "F3", KeyF4: "F4", KeyF5: "F5", KeyF6: "F6",
	KeyF7: "F7", KeyF8: "F8", KeyF9: "F9", KeyF10: "F10", KeyF11: "F11", KeyF12: "F12",

	KeyInsert:   "Insert",
	KeyHome:     "Home",
	KeyPageUp:   "PageUp",
	KeyDelete:   "Delete",
	KeyEnd:      "End",
	KeyPageDown: "PageDown",

	KeyRight: "Right",
	KeyLeft:  "Left",
	KeyDown:  "Down",
	KeyUp:    "Up",

	KeyLeftCtrl:   "LeftCtrl",
	KeyLeftShift:  "LeftShift",
	KeyLeftAlt:    "LeftAlt",
	KeyLeftGUI:    "LeftGUI",
	KeyRightCtrl:  "RightCtrl",
	KeyRightShift: "RightShift",
	KeyRightAlt:   "RightAlt",
	KeyRightGUI:   "RightGUI",
}

// CharToKey maps unshifted ASCII characters to their HID usage codes.
var CharToKey = map[byte]Key{
	'a': KeyA, 'b': KeyB, 'c': KeyC, 'd': KeyD, 'e': KeyE, 'f': KeyF, 'g': KeyG,
	'h': KeyH, 'i': KeyI, 'j': KeyJ, 'k': KeyK, 'l': KeyL, 'm': KeyM, 'n': KeyN,
	'o': KeyO, 'p': KeyP, 'q': KeyQ, 'r': KeyR, 's': KeyS, 't': KeyT, 'u': KeyU,
	'v': KeyV, 'w': KeyW, 'x': KeyX, 'y': KeyY, 'z': KeyZ,

	'1': Key1, '2': Key2, '3': Key3, '4': Key4, '5': Key5,
	'6': Key6, '7': Key7, '8': Key8, '9': Key9, '0': Key0,

	'-':  KeyMinus,
	'=':  KeyEqual,
	'[':  KeyLeftBrace,
	']':  KeyRightBrace,
	'\\': KeyBackslash,
	';':  KeySemicolon,
	'\'': KeyApostrophe,
	'`':  KeyGrave,
	',':  KeyComma,
	'.':  KeyPeriod,
	'/':  KeySlash,
	' ':  KeySpace,
}

var aliases = map[string]Key{
	"ctrl":    KeyLeftCtrl,
	"control": KeyLeftCtrl,
	"shift":   KeyLeftShift,
	"alt":     KeyLeftAlt,
	"gui":     KeyLeftGUI,
	"meta":    KeyLeftGUI,
	"esc":     KeyEscape,
	"return":  KeyEnter,
}

var byLowerName = func() map[string]Key {
	m := make(map[string]Key, len(KeyName)+len(aliases))
	for k, n := range KeyName {
		m[strings.ToLower(n)] = k
	}
	for n, k := range aliases {
		m[n] = k
	}
	return m
}()

// String returns the key name, or the hex usage code for unnamed keys.
func (k Key) String() string {
	if n, ok := KeyName[k]; ok {
		return n
	}
	return fmt.Sprintf("0x%02x", uint8(k))
}

// ParseKey resolves a key from its name ("LeftShift", "Up"), a single
// character ("q", "1") or a hex usage code ("0x14"). Names are case-insensitive.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return KeyNone, fmt.Errorf("empty key name")
	}
	if len(s) == 1 {
		if k, ok := CharToKey[strings.ToLower(s)[0]]; ok {
			return k, nil
		}
	}
	if k, ok := byLowerName[strings.ToLower(s)]; ok {
		return k, nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 8)
		if err == nil && n != 0 {
			return Key(n), nil
		}
	}
	return KeyNone, fmt.Errorf("unknown key %q", s)
}

// ParseKeys resolves every entry of names with ParseKey.
func ParseKeys(names []string) ([]Key, error) {
	out := make([]Key, 0, len(names))
	for i, n := range names {
		k, err := ParseKey(n)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		out = append(out, k)
	}
	return out, nil
}

// KeysFromString maps each character of s to a key, e.g. "1234qwer".
func KeysFromString(s string) ([]Key, error) {
	out := make([]Key, 0, len(s))
	for i := 0; i < len(s); i++ {
		k, ok := CharToKey[strings.ToLower(s[i:i+1])[0]]
		if !ok {
			return nil, fmt.Errorf("unsupported character %q at %d", s[i], i)
		}
		out = append(out, k)
	}
	return out, nil
}
