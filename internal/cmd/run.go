package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Alia5/midikeys/engine"
	"github.com/Alia5/midikeys/internal/configpaths"
	"github.com/Alia5/midikeys/internal/log"
	"github.com/Alia5/midikeys/internal/midiin"
	"github.com/Alia5/midikeys/internal/panel"
	"github.com/Alia5/midikeys/internal/session"
	"github.com/Alia5/midikeys/internal/sink"
	"github.com/Alia5/midikeys/keymap"
	"github.com/Alia5/midikeys/settings"
)

type Run struct {
	Layout string `help:"Layout file (json, yaml or toml); defaults to layout.* in the working or config directory, then the built-in layout" type:"path" env:"MIDIKEYS_LAYOUT"`
	Port   string `help:"MIDI input port number or name substring; empty picks the first port" env:"MIDIKEYS_PORT"`
	Panel  bool   `help:"Open the terminal control panel" env:"MIDIKEYS_PANEL"`

	Base          bool          `help:"Enable the base range" default:"true" negatable:"" env:"MIDIKEYS_BASE"`
	Low           bool          `help:"Enable the low extension range" negatable:"" env:"MIDIKEYS_LOW"`
	High          bool          `help:"Enable the high extension range" negatable:"" env:"MIDIKEYS_HIGH"`
	AutoTranspose bool          `help:"Shift out-of-range notes by octaves into an enabled range" negatable:"" env:"MIDIKEYS_AUTO_TRANSPOSE"`
	Experimental  bool          `help:"Strike black keys with the transpose keys instead of the black-key modifier" negatable:"" env:"MIDIKEYS_EXPERIMENTAL"`
	TapDelay      time.Duration `help:"Pause after each transpose key tap in experimental mode" default:"0s" env:"MIDIKEYS_TAP_DELAY"`
	Quantize      time.Duration `help:"Delay note-ons to the next multiple of this grid; 0 disables" default:"0s" env:"MIDIKEYS_QUANTIZE"`

	Input midiin.Filter `embed:""`
	Sink  sink.Config   `embed:""`
}

// Run is called by Kong when the run command is executed.
func (r *Run) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.Start(ctx, logger, rawLogger)
}

// Settings returns the initial toggle state from the flags.
func (r *Run) Settings() settings.Settings {
	return settings.Settings{
		Ranges:                keymap.Ranges{Base: r.Base, Low: r.Low, High: r.High},
		AutoTranspose:         r.AutoTranspose,
		ExperimentalBlackKeys: r.Experimental,
		TapDelay:              max(r.TapDelay, 0),
	}
}

func (r *Run) Start(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	if r.Panel && !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the control panel needs an interactive terminal")
	}

	km, source, err := loadKeymap(r.Layout)
	if err != nil {
		return err
	}
	logger.Info("Loaded layout", "source", source)

	store := settings.NewStore(r.Settings())
	store.OnChange(func(s settings.Settings) {
		logger.Info("Settings changed",
			"base", s.Ranges.Base, "low", s.Ranges.Low, "high", s.Ranges.High,
			"autoTranspose", s.AutoTranspose, "mode", s.Mode(), "tapDelay", s.TapDelay)
	})
	if r.Experimental && !km.ExperimentalSupported() {
		logger.Warn("Layout has no transpose keys, experimental black keys fall back to the modifier")
	}

	kb, err := sink.Open(ctx, r.Sink, logger, rawLogger)
	if err != nil {
		return fmt.Errorf("open virtual keyboard: %w", err)
	}
	defer func() {
		if err := kb.Close(); err != nil {
			logger.Error("Failed to close virtual keyboard", "error", err)
		}
	}()

	eng := engine.New(km, store, kb, engine.WithLogger(logger))
	in := &midiin.Input{Filter: r.Input, Logger: logger, Raw: rawLogger}
	sess := session.New(in, eng, session.WithLogger(logger), session.WithQuantize(r.Quantize))

	loopCtx, cancel := context.WithCancel(ctx)
	loopDone := make(chan error, 1)
	go func() { loopDone <- sess.Run(loopCtx) }()
	defer func() {
		cancel()
		<-loopDone
		st := eng.Stats()
		logger.Info("Stopped", "noteOns", st.NoteOns, "noteOffs", st.NoteOffs, "dropped", st.Dropped,
			"transposed", st.Transposed, "deviceErrors", st.DeviceErrors)
	}()

	if r.Panel {
		if r.Port != "" {
			if err := sess.Connect(ctx, r.Port); err != nil {
				logger.Warn("Failed to connect MIDI input", "port", r.Port, "error", err)
			}
		}
		return panel.Run(ctx, panel.New(ctx, sess, eng, store, midiin.Ports))
	}

	if err := sess.Connect(ctx, r.Port); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return nil
		case st := <-sess.Status():
			if st.Err != nil {
				logger.Warn("Session status", "status", st.Kind, "error", st.Err)
			}
		}
	}
}

// loadKeymap compiles the layout at path, or the first layout file found in
// the usual places, or the built-in layout. It also reports where the
// layout came from.
func loadKeymap(path string) (*keymap.Map, string, error) {
	if path == "" {
		path = configpaths.FindLayout()
	}
	if path == "" {
		km, err := keymap.New(keymap.Default())
		return km, "built-in", err
	}
	km, err := keymap.LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	return km, path, nil
}
