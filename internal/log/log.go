// Package log builds the slog loggers that are passed to every pipeline
// component. There is no package-level logger: callers own the sink.
package log

import (
	"context"
	"errors"
	"io"
	"log/slog"

	charmlog "github.com/charmbracelet/log"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Options configures a logger.
type Options struct {
	Level   string
	Prefix  string
	Console io.Writer
	// File, when set, receives plain timestamped lines in addition to the console.
	File io.Writer
}

// ParseLevel maps a config level name to a slog level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing coloured lines to opts.Console and, when
// opts.File is set, plain text lines to the file.
func New(opts Options) *slog.Logger {
	lvl := ParseLevel(opts.Level)

	console := charmlog.NewWithOptions(opts.Console, charmlog.Options{
		Prefix: opts.Prefix,
		Level:  charmlog.Level(lvl),
	})
	console.SetStyles(consoleStyles())

	if opts.File == nil {
		return slog.New(console)
	}
	file := slog.NewTextHandler(opts.File, &slog.HandlerOptions{Level: lvl})
	return slog.New(&fanout{handlers: []slog.Handler{console, file}})
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Shout uppercases a message for fatal error output.
func Shout(msg string) string {
	return cases.Upper(language.Und).String(msg)
}

func consoleStyles() *charmlog.Styles {
	s := charmlog.DefaultStyles()
	s.Levels[charmlog.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBU").
		Foreground(lipgloss.Color("8"))
	s.Levels[charmlog.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Foreground(lipgloss.Color("4"))
	s.Levels[charmlog.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Bold(true).
		Foreground(lipgloss.Color("3"))
	s.Levels[charmlog.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERRO").
		Bold(true).
		Foreground(lipgloss.Color("1"))
	return s
}

// fanout sends each record to every handler that accepts its level.
type fanout struct {
	handlers []slog.Handler
}

func (f *fanout) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanout{handlers: next}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanout{handlers: next}
}
