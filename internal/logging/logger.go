package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process logger. Components take the *zap.Logger from
// Underlying; request-scoped code goes through For or Log.
type Logger struct {
	zap *zap.Logger
}

// NewLogger creates a logger writing to stdout.
func NewLogger(cfg *Config) (*Logger, error) {
	return newLogger(cfg, os.Stdout)
}

// NewLoggerTo creates a logger writing to w. The MCP stdio transport owns
// stdout, so that mode logs to stderr.
func NewLoggerTo(cfg *Config, w io.Writer) (*Logger, error) {
	return newLogger(cfg, w)
}

func newLogger(cfg *Config, w io.Writer) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level, _ := LevelFromString(cfg.Level)
	core := zapcore.NewCore(
		newRedactingEncoder(newEncoder(cfg.Format), cfg.Redact),
		zapcore.AddSync(w),
		level,
	)
	if cfg.Sampling.Enabled {
		core = &levelSplitCore{
			Core:    core,
			sampled: zapcore.NewSamplerWithOptions(core, time.Second, cfg.Sampling.Initial, cfg.Sampling.Thereafter),
		}
	}

	opts := []zap.Option{}
	if cfg.Caller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	if cfg.Stacktrace != "" {
		st, _ := LevelFromString(cfg.Stacktrace)
		opts = append(opts, zap.AddStacktrace(st))
	}

	zapLogger := zap.New(core, opts...)
	if len(cfg.Fields) > 0 {
		fields := make([]zap.Field, 0, len(cfg.Fields))
		for k, v := range cfg.Fields {
			fields = append(fields, zap.String(k, v))
		}
		zapLogger = zapLogger.With(fields...)
	}

	return &Logger{zap: zapLogger}, nil
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		if l == TraceLevel {
			enc.AppendString("trace")
			return
		}
		zapcore.LowercaseLevelEncoder(l, enc)
	}

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// levelSplitCore routes entries below Error through the sampler.
type levelSplitCore struct {
	zapcore.Core
	sampled zapcore.Core
}

func (c *levelSplitCore) With(fields []zap.Field) zapcore.Core {
	return &levelSplitCore{Core: c.Core.With(fields), sampled: c.sampled.With(fields)}
}

func (c *levelSplitCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if ent.Level >= zapcore.ErrorLevel {
		return c.Core.Check(ent, ce)
	}
	return c.sampled.Check(ent, ce)
}

// Log writes msg at level with the request and trace ids carried by ctx.
// Unlike zap's own methods it accepts TraceLevel.
func (l *Logger) Log(ctx context.Context, level zapcore.Level, msg string, fields ...zap.Field) {
	if ce := l.zap.Check(level, msg); ce != nil {
		ce.Write(append(ContextFields(ctx), fields...)...)
	}
}

// For returns a zap logger that tags every entry with ctx's ids.
func (l *Logger) For(ctx context.Context) *zap.Logger {
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return l.zap
	}
	return l.zap.With(fields...)
}

// Sync flushes buffered entries. A terminal or pipe cannot be fsynced
// (EINVAL, ENOTTY), which is not an error here.
func (l *Logger) Sync() error {
	var errno syscall.Errno
	if err := l.zap.Sync(); err != nil && !(errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY)) {
		return err
	}
	return nil
}

func (l *Logger) Underlying() *zap.Logger { return l.zap }
