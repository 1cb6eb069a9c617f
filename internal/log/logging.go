// Package log builds the configured slog.Logger used by every command.
//
// Without a log file, records below error go to stdout and errors go to
// stderr. With a log file, everything at the configured level is written
// to the file and the console only receives errors, which keeps the
// terminal usable while the control panel owns it.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace sits below Debug and enables raw MIDI and device traffic dumps.
const LevelTrace slog.Level = -8

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MultiHandler fans records out to several handlers.
type MultiHandler struct{ hs []slog.Handler }

func NewMultiHandler(hs ...slog.Handler) MultiHandler { return MultiHandler{hs: hs} }

func (m MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		_ = h.Handle(ctx, r.Clone())
	}
	return nil
}

func (m MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithAttrs(attrs)
	}
	return MultiHandler{hs: out}
}

func (m MultiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithGroup(name)
	}
	return MultiHandler{hs: out}
}

// LevelFilter passes only the levels accepted by pass to h.
type LevelFilter struct {
	pass func(slog.Level) bool
	h    slog.Handler
}

func NewLevelFilter(pass func(slog.Level) bool, h slog.Handler) LevelFilter {
	return LevelFilter{pass: pass, h: h}
}

func (f LevelFilter) Enabled(ctx context.Context, level slog.Level) bool {
	if !f.pass(level) {
		return false
	}
	return f.h.Enabled(ctx, level)
}

func (f LevelFilter) Handle(ctx context.Context, r slog.Record) error {
	if !f.pass(r.Level) {
		return nil
	}
	return f.h.Handle(ctx, r)
}

func (f LevelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return LevelFilter{pass: f.pass, h: f.h.WithAttrs(attrs)}
}

func (f LevelFilter) WithGroup(name string) slog.Handler {
	return LevelFilter{pass: f.pass, h: f.h.WithGroup(name)}
}

// SetupLogger builds the process logger. The returned closers must be closed
// on exit.
func SetupLogger(logLevel, logFile string) (*slog.Logger, []io.Closer, error) {
	return setupLogger(logLevel, logFile, os.Stdout, os.Stderr)
}

func setupLogger(logLevel, logFile string, stdout, stderr io.Writer) (*slog.Logger, []io.Closer, error) {
	level := ParseLevel(logLevel)
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevelName}
	var handlers []slog.Handler
	var closers []io.Closer

	if logFile == "" {
		handlers = append(handlers,
			NewLevelFilter(func(l slog.Level) bool { return l < slog.LevelError }, slog.NewTextHandler(stdout, opts)),
			NewLevelFilter(func(l slog.Level) bool { return l >= slog.LevelError }, slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		)
	} else {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, f)
		handlers = append(handlers,
			slog.NewTextHandler(f, opts),
			slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelError}),
		)
	}
	return slog.New(NewMultiHandler(handlers...)), closers, nil
}

func replaceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
