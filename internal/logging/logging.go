// Package logging defines the Logger interface every engine
// component accepts through its constructor, rather than reaching for
// a package-level logger (spec.md §9 "global state" redesign flag:
// logging is an external collaborator referenced by interface).
// Grounded on internal/logger.ZerologAdapter, restructured around
// zerolog's own With().Str().Logger() sub-logger idiom: rather than
// every call site re-stamping a "component" string on each event (the
// original adapter's shape, and a common source of copy-pasted-wrong
// component names across a dozen call sites), each collaborator binds
// its component once, at construction, via Component, and gets back a
// Logger already scoped to it.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the small structured-logging interface threaded through
// every engine, stage, and orchestrator constructor. It carries no
// component argument on its emitting methods: a component name is
// bound once via Component, so a call site that logs from inside a
// loop or a deeply nested helper cannot drift from the name its
// constructor registered.
type Logger interface {
	Debug(message string, fields map[string]any)
	Info(message string, fields map[string]any)
	Warning(message string, fields map[string]any)
	Error(err error, fields map[string]any)
	// Component returns a Logger whose emitted events all carry the
	// given component name, without that name being repeated at every
	// call site.
	Component(name string) Logger
}

// Zerolog adapts a zerolog.Logger to the Logger interface.
type Zerolog struct {
	logger zerolog.Logger
}

func New(writer io.Writer, level zerolog.Level) *Zerolog {
	l := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return &Zerolog{logger: l}
}

func NewConsole(level zerolog.Level) *Zerolog {
	return New(zerolog.ConsoleWriter{Out: os.Stdout}, level)
}

// Component binds "component" onto a child zerolog.Logger via
// With().Str(...).Logger(), so it is carried on every field of every
// subsequent event without being passed at each call site.
func (z *Zerolog) Component(name string) Logger {
	return &Zerolog{logger: z.logger.With().Str("component", name).Logger()}
}

func (z *Zerolog) Debug(message string, fields map[string]any) {
	event := z.logger.Debug()
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

func (z *Zerolog) Info(message string, fields map[string]any) {
	event := z.logger.Info()
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

func (z *Zerolog) Warning(message string, fields map[string]any) {
	event := z.logger.Warn()
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}

func (z *Zerolog) Error(err error, fields map[string]any) {
	event := z.logger.Error().Err(err)
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg("operation failed")
}

// Nop is a Logger that discards everything, useful in tests.
type Nop struct{}

func (Nop) Debug(string, map[string]any)   {}
func (Nop) Info(string, map[string]any)    {}
func (Nop) Warning(string, map[string]any) {}
func (Nop) Error(error, map[string]any)    {}
func (Nop) Component(string) Logger        { return Nop{} }
