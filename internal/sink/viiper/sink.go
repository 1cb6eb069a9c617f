// Package viiper drives a virtual USB keyboard exposed by a VIIPER server.
// The keyboard is added to a bus on open and removed again on close; every
// press or release writes the full key state to the device stream.
package viiper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/Alia5/midikeys/internal/log"
	"github.com/Alia5/midikeys/keyboard"
)

const deviceType = "keyboard"

// Config selects the VIIPER server and bus.
type Config struct {
	Addr     string        `help:"VIIPER API server address" default:"localhost:3242" env:"MIDIKEYS_VIIPER_ADDR"`
	Password string        `help:"VIIPER API password; empty disables authentication" env:"MIDIKEYS_VIIPER_PASSWORD"`
	BusID    uint32        `help:"Bus to attach the keyboard to; 0 uses the lowest existing bus or creates one" default:"0" env:"MIDIKEYS_VIIPER_BUS"`
	Timeout  time.Duration `help:"Dial and request timeout" default:"3s" env:"MIDIKEYS_VIIPER_TIMEOUT"`
}

// Sink is a VIIPER-backed virtual keyboard.
type Sink struct {
	client     *Client
	stream     *Stream
	logger     *slog.Logger
	raw        log.RawLogger
	busID      uint32
	createdBus bool

	mu    sync.Mutex
	state keyboard.InputState
	leds  keyboard.LEDState

	cancel context.CancelFunc
	done   chan struct{}
}

// Open adds a keyboard to the configured bus and connects its stream.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, raw log.RawLogger) (*Sink, error) {
	tc := defaultTransportConfig()
	tc.Password = cfg.Password
	if cfg.Timeout > 0 {
		tc.DialTimeout = cfg.Timeout
		tc.ReadTimeout = cfg.Timeout
		tc.WriteTimeout = cfg.Timeout
	}
	t, err := NewTransport(cfg.Addr, &tc)
	if err != nil {
		return nil, err
	}
	client := NewClient(t)

	ping, err := client.Ping(ctx)
	if err != nil {
		return nil, fmt.Errorf("viiper %s: %w", cfg.Addr, err)
	}
	logger.Info("Connected to VIIPER", "addr", cfg.Addr, "server", ping.Server, "version", ping.Version)

	busID, created, err := pickBus(ctx, client, cfg.BusID)
	if err != nil {
		return nil, err
	}

	s := &Sink{client: client, logger: logger, raw: raw, busID: busID, createdBus: created}
	dev, err := client.DeviceAdd(ctx, busID, deviceType)
	if err != nil {
		s.removeBus()
		return nil, fmt.Errorf("add keyboard to bus %d: %w", busID, err)
	}
	stream, err := client.OpenStream(ctx, busID, dev.DevId)
	if err != nil {
		s.removeDevice(dev.DevId)
		s.removeBus()
		return nil, fmt.Errorf("open keyboard stream: %w", err)
	}
	s.stream = stream
	logger.Info("Virtual keyboard ready", "bus", busID, "device", dev.DevId)

	readCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.readLEDs(readCtx)
	return s, nil
}

func pickBus(ctx context.Context, c *Client, want uint32) (uint32, bool, error) {
	list, err := c.BusList(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("list buses: %w", err)
	}
	if want != 0 {
		if slices.Contains(list.Buses, want) {
			return want, false, nil
		}
		r, err := c.BusCreate(ctx, want)
		if err != nil {
			return 0, false, fmt.Errorf("create bus %d: %w", want, err)
		}
		return r.BusID, true, nil
	}
	if len(list.Buses) > 0 {
		return slices.Min(list.Buses), false, nil
	}
	var createErr error
	for try := uint32(1); try <= 100; try++ {
		r, err := c.BusCreate(ctx, try)
		if err == nil {
			return r.BusID, true, nil
		}
		createErr = err
	}
	return 0, false, fmt.Errorf("create bus: %w", createErr)
}

func (s *Sink) readLEDs(ctx context.Context) {
	defer close(s.done)
	err := s.stream.ReadLEDs(ctx, func(st keyboard.LEDState) {
		s.mu.Lock()
		s.leds = st
		s.mu.Unlock()
		s.logger.Debug("keyboard LEDs", "num", st.NumLock, "caps", st.CapsLock, "scroll", st.ScrollLock)
	})
	if err != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		s.logger.Warn("keyboard stream closed", "error", err)
	}
}

func (s *Sink) Press(k keyboard.Key) error {
	return s.apply(k, true)
}

func (s *Sink) Release(k keyboard.Key) error {
	return s.apply(k, false)
}

func (s *Sink) apply(k keyboard.Key, down bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	if down {
		s.state.Press(k)
	} else {
		s.state.Release(k)
	}
	if err := s.flush(); err != nil {
		s.state = prev
		return err
	}
	return nil
}

func (s *Sink) flush() error {
	b, err := s.state.MarshalBinary()
	if err != nil {
		return err
	}
	s.raw.Log(log.DeviceOut, b)
	if _, err := s.stream.Write(b); err != nil {
		return fmt.Errorf("write keyboard state: %w", err)
	}
	return nil
}

// LEDs returns the LED state last reported by the host.
func (s *Sink) LEDs() keyboard.LEDState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leds
}

// Close releases every key, removes the device and, if Open created it, the
// bus.
func (s *Sink) Close() error {
	s.mu.Lock()
	var errs []error
	if !s.state.Empty() {
		s.state = keyboard.InputState{}
		if err := s.flush(); err != nil {
			errs = append(errs, err)
		}
	}
	s.mu.Unlock()

	s.cancel()
	if err := s.stream.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, err)
	}
	<-s.done

	if err := s.removeDevice(s.stream.DevID); err != nil {
		errs = append(errs, err)
	}
	if err := s.removeBus(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Sink) removeDevice(devID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := s.client.DeviceRemove(ctx, s.busID, devID); err != nil {
		return fmt.Errorf("remove keyboard %d-%s: %w", s.busID, devID, err)
	}
	s.logger.Info("Removed virtual keyboard", "bus", s.busID, "device", devID)
	return nil
}

func (s *Sink) removeBus() error {
	if !s.createdBus {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := s.client.BusRemove(ctx, s.busID); err != nil {
		return fmt.Errorf("remove bus %d: %w", s.busID, err)
	}
	return nil
}
