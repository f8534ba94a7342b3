package serialx

import (
	"log/slog"
	"sync"
)

// Component identifies a transport in log records.
type Component string

const (
	ComponentUART Component = "uart"
	ComponentUSB  Component = "usb"
)

var (
	logger   = slog.New(slog.DiscardHandler)
	logMutex sync.RWMutex
)

// SetLogger replaces the package logger. Records are only emitted from
// foreground lifecycle calls, never from an interrupt handler or a USB
// notification. A nil logger discards everything.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	logMutex.Lock()
	defer logMutex.Unlock()
	logger = l
}

// Logger returns the package logger.
func Logger() *slog.Logger {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return logger
}

func logDebug(c Component, msg string, args ...any) {
	Logger().Debug(msg, append([]any{"component", string(c)}, args...)...)
}

func logInfo(c Component, msg string, args ...any) {
	Logger().Info(msg, append([]any{"component", string(c)}, args...)...)
}
