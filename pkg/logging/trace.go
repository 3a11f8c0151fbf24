package logging

import (
	"log/slog"
	"sync/atomic"
)

var traceEnabled atomic.Bool

// SetTrace turns trace logging on or off. Init sets it from log.trace.
func SetTrace(on bool) {
	traceEnabled.Store(on)
}

// Trace logs at DEBUG, but only while trace logging is on. Per-sample lookups
// and per-client stream sends log through here.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if traceEnabled.Load() {
		logger.Debug(msg, args...)
	}
}
