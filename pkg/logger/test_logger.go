package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// InitTest routes the global logger to the test's output until the test ends.
func InitTest(tb zaptest.TestingT) *Logger {
	l := &Logger{Logger: zaptest.NewLogger(tb)}
	prev := SetGlobalLogger(l)
	if c, ok := tb.(interface{ Cleanup(func()) }); ok {
		c.Cleanup(func() { SetGlobalLogger(prev) })
	}
	return l
}

// NewObservedLogger returns a logger that records every entry at debug level
// and above, for assertions on what was logged.
func NewObservedLogger() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &Logger{Logger: zap.New(core)}, logs
}
