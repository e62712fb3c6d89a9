package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger wraps zerolog.Logger to implement the Logger interface.
type ZeroLogger struct {
	zlog *zerolog.Logger
}

var _ Logger = (*ZeroLogger)(nil)

// New creates a ZeroLogger writing JSON to stdout at the given level.
// If pretty is true, output is formatted for human readability.
func New(level string, pretty bool) *ZeroLogger {
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(out).With().Timestamp().Logger()

	zLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zLevel = zerolog.InfoLevel
	}
	l = l.Level(zLevel)

	return &ZeroLogger{zlog: &l}
}

// NewWithWriter creates a ZeroLogger writing to the given writer.
// Used by tests to capture output.
func NewWithWriter(level string, out io.Writer) *ZeroLogger {
	l := zerolog.New(out).With().Timestamp().Logger()

	zLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zLevel = zerolog.InfoLevel
	}
	l = l.Level(zLevel)

	return &ZeroLogger{zlog: &l}
}

// Info creates an info-level log event.
func (z *ZeroLogger) Info() LogEvent {
	return &logEventAdapter{event: z.zlog.Info()}
}

// Error creates an error-level log event.
func (z *ZeroLogger) Error() LogEvent {
	return &logEventAdapter{event: z.zlog.Error()}
}

// Debug creates a debug-level log event.
func (z *ZeroLogger) Debug() LogEvent {
	return &logEventAdapter{event: z.zlog.Debug()}
}

// Warn creates a warn-level log event.
func (z *ZeroLogger) Warn() LogEvent {
	return &logEventAdapter{event: z.zlog.Warn()}
}

// WithFields returns a logger with the given fields attached to every event.
func (z *ZeroLogger) WithFields(fields map[string]any) Logger {
	l := z.zlog.With().Fields(fields).Logger()
	return &ZeroLogger{zlog: &l}
}
