// Package logging wraps zerolog in the key-value call shape the teacher
// uses throughout its own (unexported) logger: Info("message", "key",
// value, ...). VerSafe imports a real published logger instead of
// reinventing that internal package (see DESIGN.md).
package logging

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger is the process-wide structured logger handle. Every service
// receives one through internal/core.Core rather than reaching for a
// package-level global.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger writing to w (os.Stdout in production, a buffer in
// tests) tagged with the owning service name.
func New(w io.Writer, service string) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zl := zerolog.New(w).With().Timestamp().Str("service", service).Logger()
	return &Logger{zl: zl}
}

// Default is a convenience constructor writing to os.Stdout.
func Default(service string) *Logger {
	return New(os.Stdout, service)
}

func (l *Logger) with(ev *zerolog.Event, kv []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	return ev
}

// Info logs at info level with alternating key/value pairs, e.g.
// log.Info("document registered", "document_id", id, "ledger_tx", tx).
func (l *Logger) Info(msg string, kv ...interface{}) {
	l.with(l.zl.Info(), kv).Msg(msg)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, kv ...interface{}) {
	l.with(l.zl.Warn(), kv).Msg(msg)
}

// Error logs at error level.
func (l *Logger) Error(msg string, kv ...interface{}) {
	l.with(l.zl.Error(), kv).Msg(msg)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, kv ...interface{}) {
	l.with(l.zl.Debug(), kv).Msg(msg)
}

// WithCorrelationID returns a child logger tagging every subsequent entry
// with a correlation id, minted fresh if none is supplied. Internal-kind
// errors (apperr.KindInternal) use this so the client-visible "(ref: ...)"
// suffix matches the server-side structured log record (spec.md §7).
func (l *Logger) WithCorrelationID(id string) (*Logger, string) {
	if id == "" {
		id = uuid.NewString()
	}
	return &Logger{zl: l.zl.With().Str("correlation_id", id).Logger()}, id
}
