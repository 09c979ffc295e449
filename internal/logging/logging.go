package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// StructuredLogger logs named events with an arbitrary set of fields.
type StructuredLogger interface {
	Trace(event string, fields interface{})
	Debug(event string, fields interface{})
	Info(event string, fields interface{})
	Warn(event string, fields interface{})
	Error(event string, fields interface{})
}

type JSONLogger struct {
	log zerolog.Logger
}

// NewJSONLogger writes JSON lines to stderr. Verbosity 0 disables logging,
// 1 is error, 2 warn, 3 info, 4 debug and anything above is trace.
func NewJSONLogger(verbosity int) *JSONLogger {
	return NewJSONLoggerTo(os.Stderr, verbosity)
}

func NewJSONLoggerTo(w io.Writer, verbosity int) *JSONLogger {
	return &JSONLogger{
		log: zerolog.New(w).With().Timestamp().Logger().Level(levelFor(verbosity)),
	}
}

func levelFor(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.Disabled
	case verbosity == 1:
		return zerolog.ErrorLevel
	case verbosity == 2:
		return zerolog.WarnLevel
	case verbosity == 3:
		return zerolog.InfoLevel
	case verbosity == 4:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

func (l *JSONLogger) Trace(event string, fields interface{}) {
	write(l.log.Trace(), event, fields)
}

func (l *JSONLogger) Debug(event string, fields interface{}) {
	write(l.log.Debug(), event, fields)
}

func (l *JSONLogger) Info(event string, fields interface{}) {
	write(l.log.Info(), event, fields)
}

func (l *JSONLogger) Warn(event string, fields interface{}) {
	write(l.log.Warn(), event, fields)
}

func (l *JSONLogger) Error(event string, fields interface{}) {
	write(l.log.Error(), event, fields)
}

func write(e *zerolog.Event, event string, fields interface{}) {
	if e == nil {
		return
	}

	switch f := fields.(type) {
	case nil:
	case map[string]interface{}:
		e = e.Fields(f)
	default:
		e = e.Interface("data", f)
	}

	e.Msg(event)
}

type noopLogger struct{}

// NewNoopLogger returns a logger that drops every event.
func NewNoopLogger() StructuredLogger {
	return noopLogger{}
}

func (noopLogger) Trace(string, interface{}) {}
func (noopLogger) Debug(string, interface{}) {}
func (noopLogger) Info(string, interface{})  {}
func (noopLogger) Warn(string, interface{})  {}
func (noopLogger) Error(string, interface{}) {}
