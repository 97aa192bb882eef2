package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger captures every entry in memory, trace level included.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger returns an empty TestLogger.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{
		Logger: &Logger{zap: zap.New(core)},
		logs:   logs,
	}
}

// All returns the captured entries in order.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.logs.All()
}

// Messages returns the messages logged at level.
func (t *TestLogger) Messages(level zapcore.Level) []string {
	var out []string
	for _, e := range t.logs.FilterLevelExact(level).All() {
		out = append(out, e.Message)
	}
	return out
}

// Reset discards everything captured so far.
func (t *TestLogger) Reset() {
	_ = t.logs.TakeAll()
}
