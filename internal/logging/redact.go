package logging

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// RedactedString creates a Zap field with redacted value and length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// redactingEncoder masks values whose field key is in the redact set.
type redactingEncoder struct {
	zapcore.Encoder
	keys map[string]bool
}

func newRedactingEncoder(base zapcore.Encoder, keys []string) zapcore.Encoder {
	if len(keys) == 0 {
		return base
	}
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = true
	}
	return &redactingEncoder{Encoder: base, keys: set}
}

func (e *redactingEncoder) redact(key string) bool {
	return e.keys[strings.ToLower(key)]
}

func (e *redactingEncoder) AddString(key, val string) {
	if e.redact(key) {
		val = redacted
	}
	e.Encoder.AddString(key, val)
}

func (e *redactingEncoder) AddByteString(key string, val []byte) {
	if e.redact(key) {
		val = []byte(redacted)
	}
	e.Encoder.AddByteString(key, val)
}

func (e *redactingEncoder) AddReflected(key string, val interface{}) error {
	if e.redact(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *redactingEncoder) Clone() zapcore.Encoder {
	return &redactingEncoder{Encoder: e.Encoder.Clone(), keys: e.keys}
}

// EncodeEntry re-applies redaction to the entry's own fields, which zap
// hands to the encoder directly rather than through Add* calls.
func (e *redactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	masked := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if e.redact(f.Key) {
			f = zap.String(f.Key, redacted)
		}
		masked[i] = f
	}
	return e.Encoder.EncodeEntry(ent, masked)
}
