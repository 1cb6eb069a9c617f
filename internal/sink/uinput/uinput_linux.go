//go:build linux

package uinput

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/Alia5/midikeys/keyboard"
)

const (
	evSyn     = 0x00
	evKey     = 0x01
	synReport = 0

	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiDevSetup   = 0x405c5503
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565

	busVirtual = 0x06
)

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputSetup struct {
	ID           inputID
	Name         [80]byte
	FFEffectsMax uint32
}

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// Sink is a uinput virtual keyboard.
type Sink struct {
	mu     sync.Mutex
	f      *os.File
	logger *slog.Logger
	down   map[keyboard.Key]bool
}

// Open creates the virtual keyboard device.
func Open(cfg Config, logger *slog.Logger) (*Sink, error) {
	f, err := os.OpenFile(cfg.Path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Path, err)
	}
	fd := int(f.Fd())

	if err := unix.IoctlSetInt(fd, uiSetEvBit, evKey); err != nil {
		f.Close()
		return nil, fmt.Errorf("enable key events: %w", err)
	}
	for _, code := range evdevCodes {
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, int(code)); err != nil {
			f.Close()
			return nil, fmt.Errorf("enable key %d: %w", code, err)
		}
	}

	setup := uinputSetup{ID: inputID{Bustype: busVirtual, Vendor: 0x1209, Product: 0x4d4b, Version: 1}}
	copy(setup.Name[:len(setup.Name)-1], cfg.Name)
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uiDevSetup, uintptr(unsafe.Pointer(&setup))); errno != 0 {
		f.Close()
		return nil, fmt.Errorf("setup device: %w", errno)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("create device: %w", err)
	}
	logger.Info("Virtual keyboard ready", "backend", "uinput", "name", cfg.Name)
	return &Sink{f: f, logger: logger, down: map[keyboard.Key]bool{}}, nil
}

func (s *Sink) Press(k keyboard.Key) error   { return s.emit(k, true) }
func (s *Sink) Release(k keyboard.Key) error { return s.emit(k, false) }

func (s *Sink) emit(k keyboard.Key, down bool) error {
	code, ok := EvdevCode(k)
	if !ok {
		return fmt.Errorf("%s: %w", k, ErrUnmapped)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var value int32
	if down {
		value = 1
	}
	if err := s.write(evKey, code, value); err != nil {
		return err
	}
	if err := s.write(evSyn, synReport, 0); err != nil {
		return err
	}
	if down {
		s.down[k] = true
	} else {
		delete(s.down, k)
	}
	return nil
}

func (s *Sink) write(typ, code uint16, value int32) error {
	ev := inputEvent{Time: unix.NsecToTimeval(time.Now().UnixNano()), Type: typ, Code: code, Value: value}
	if err := binary.Write(s.f, binary.NativeEndian, &ev); err != nil {
		return fmt.Errorf("write input event: %w", err)
	}
	return nil
}

// Close releases held keys and destroys the device.
func (s *Sink) Close() error {
	s.mu.Lock()
	var held []keyboard.Key
	for k := range s.down {
		held = append(held, k)
	}
	s.mu.Unlock()

	var errs []error
	for _, k := range held {
		if err := s.Release(k); err != nil {
			errs = append(errs, err)
		}
	}
	if err := unix.IoctlSetInt(int(s.f.Fd()), uiDevDestroy, 0); err != nil {
		errs = append(errs, fmt.Errorf("destroy device: %w", err))
	}
	errs = append(errs, s.f.Close())
	return errors.Join(errs...)
}
