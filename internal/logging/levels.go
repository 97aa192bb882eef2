package logging

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel is one step below Debug.
const TraceLevel = zapcore.DebugLevel - 1

// LevelFromString accepts zap's level names plus "trace".
func LevelFromString(s string) (zapcore.Level, error) {
	if strings.EqualFold(strings.TrimSpace(s), "trace") {
		return TraceLevel, nil
	}
	return zapcore.ParseLevel(s)
}
