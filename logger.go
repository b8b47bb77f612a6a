package imapfs

import (
	"log/slog"
	"sync/atomic"

	"github.com/BrianLeishman/go-imapfs/session"
)

// Logger is the logging interface shared with the session package.
//
// Implementations must be safe for concurrent use.
type Logger = session.Logger

var globalLogger atomic.Value // stores Logger

func init() {
	globalLogger.Store(defaultLogger())
}

func defaultLogger() Logger {
	return session.DefaultLogger().WithAttrs("component", "imapfs")
}

// SetLogger replaces the logger of this package and of the session package.
// Passing nil restores the built-in slog logger.
func SetLogger(logger Logger) {
	session.SetLogger(logger)
	if logger == nil {
		globalLogger.Store(defaultLogger())
		return
	}
	globalLogger.Store(logger.WithAttrs("component", "imapfs"))
}

// SetSlogLogger is a convenience helper for using a *slog.Logger directly.
func SetSlogLogger(logger *slog.Logger) {
	SetLogger(session.SlogLogger(logger))
}

func getLogger() Logger {
	if v := globalLogger.Load(); v != nil {
		if l, ok := v.(Logger); ok {
			return l
		}
	}
	l := defaultLogger()
	globalLogger.Store(l)
	return l
}

// logger returns the FS logger, falling back to the package logger.
func (fs *FS) logger() Logger {
	if fs.log != nil {
		return fs.log
	}
	return getLogger()
}

func (fs *FS) debugLog(msg string, args ...any) {
	if !Verbose {
		return
	}
	fs.logger().Debug(msg, args...)
}

func (fs *FS) warnLog(msg string, args ...any) {
	fs.logger().Warn(msg, args...)
}
