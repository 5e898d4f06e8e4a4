package st7789

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled reports false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger sets the logger used by the driver. By default nothing is logged.
// Pass nil to go back to silence.
//
// Levels:
//   - [slog.LevelDebug]: address windows, flush rounds, context flushes
//   - [slog.LevelInfo]: configuration summary
//   - [slog.LevelWarn]: degraded operation (no frame buffer, dropped bytes)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the logger used by the driver.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
