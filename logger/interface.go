// Package logger defines the structured logging contract used throughout
// the client and provides a zerolog-backed implementation.
package logger

import "time"

// Logger is the structured logging contract shared by every component.
type Logger interface {
	Info() LogEvent
	Error() LogEvent
	Debug() LogEvent
	Warn() LogEvent
	WithFields(fields map[string]any) Logger
}

// LogEvent is a single structured log event under construction.
// Calling Msg or Msgf sends the event.
type LogEvent interface {
	Msg(msg string)
	Msgf(format string, args ...any)
	Err(err error) LogEvent
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Float64(key string, value float64) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Bytes(key string, val []byte) LogEvent
	Interface(key string, i any) LogEvent
}
