// Package uinput is a virtual keyboard backed by the Linux /dev/uinput
// interface. Other platforms get ErrUnsupported from Open.
package uinput

import (
	"errors"

	"github.com/Alia5/midikeys/keyboard"
)

// ErrUnsupported is returned by Open where uinput does not exist.
var ErrUnsupported = errors.New("uinput keyboard is only available on linux")

// ErrUnmapped is returned for keys without an evdev code.
var ErrUnmapped = errors.New("key has no evdev code")

// Config selects the uinput device node and the name of the created device.
type Config struct {
	Path string `help:"uinput device node" default:"/dev/uinput" env:"MIDIKEYS_UINPUT_PATH"`
	Name string `help:"Name of the created input device" default:"midikeys virtual keyboard" env:"MIDIKEYS_UINPUT_NAME"`
}

// evdev KEY_* codes by HID usage.
var evdevCodes = map[keyboard.Key]uint16{
	keyboard.KeyA: 30, keyboard.KeyB: 48, keyboard.KeyC: 46, keyboard.KeyD: 32,
	keyboard.KeyE: 18, keyboard.KeyF: 33, keyboard.KeyG: 34, keyboard.KeyH: 35,
	keyboard.KeyI: 23, keyboard.KeyJ: 36, keyboard.KeyK: 37, keyboard.KeyL: 38,
	keyboard.KeyM: 50, keyboard.KeyN: 49, keyboard.KeyO: 24, keyboard.KeyP: 25,
	keyboard.KeyQ: 16, keyboard.KeyR: 19, keyboard.KeyS: 31, keyboard.KeyT: 20,
	keyboard.KeyU: 22, keyboard.KeyV: 47, keyboard.KeyW: 17, keyboard.KeyX: 45,
	keyboard.KeyY: 21, keyboard.KeyZ: 44,

	keyboard.Key1: 2, keyboard.Key2: 3, keyboard.Key3: 4, keyboard.Key4: 5,
	keyboard.Key5: 6, keyboard.Key6: 7, keyboard.Key7: 8, keyboard.Key8: 9,
	keyboard.Key9: 10, keyboard.Key0: 11,

	keyboard.KeyEnter:      28,
	keyboard.KeyEscape:     1,
	keyboard.KeyBackspace:  14,
	keyboard.KeyTab:        15,
	keyboard.KeySpace:      57,
	keyboard.KeyMinus:      12,
	keyboard.KeyEqual:      13,
	keyboard.KeyLeftBrace:  26,
	keyboard.KeyRightBrace: 27,
	keyboard.KeyBackslash:  43,
	keyboard.KeySemicolon:  39,
	keyboard.KeyApostrophe: 40,
	keyboard.KeyGrave:      41,
	keyboard.KeyComma:      51,
	keyboard.KeyPeriod:     52,
	keyboard.KeySlash:      53,
	keyboard.KeyCapsLock:   58,

	keyboard.KeyF1: 59, keyboard.KeyF2: 60, keyboard.KeyF3: 61, keyboard.KeyF4: 62,
	keyboard.KeyF5: 63, keyboard.KeyF6: 64, keyboard.KeyF7: 65, keyboard.KeyF8: 66,
	keyboard.KeyF9: 67, keyboard.KeyF10: 68, keyboard.KeyF11: 87, keyboard.KeyF12: 88,

	keyboard.KeyInsert:   110,
	keyboard.KeyHome:     102,
	keyboard.KeyPageUp:   104,
	keyboard.KeyDelete:   111,
	keyboard.KeyEnd:      107,
	keyboard.KeyPageDown: 109,

	keyboard.KeyRight: 106,
	keyboard.KeyLeft:  105,
	keyboard.KeyDown:  108,
	keyboard.KeyUp:    103,

	keyboard.KeyLeftCtrl:   29,
	keyboard.KeyLeftShift:  42,
	keyboard.KeyLeftAlt:    56,
	keyboard.KeyLeftGUI:    125,
	keyboard.KeyRightCtrl:  97,
	keyboard.KeyRightShift: 54,
	keyboard.KeyRightAlt:   100,
	keyboard.KeyRightGUI:   126,
}

// EvdevCode returns the Linux KEY_* code for k.
func EvdevCode(k keyboard.Key) (uint16, bool) {
	c, ok := evdevCodes[k]
	return c, ok
}
