// Package logger provides the leveled, structured logger used across didkey.
//
// A Logger is built once with a fixed threshold and passed explicitly to the
// components that log. There is no global instance and no way to change the
// threshold of an existing Logger; construct a new one instead.
//
// Lines are rendered through a zap console core:
//
//	[INFO] store provisioned {"data": {"store":"test-wallet"}}
//
// Structured data is marshalled with encoding/json, so map keys are sorted and
// output is stable across runs. Data that cannot be marshalled never reaches
// the caller as an error; the message is written with a marker instead.
package logger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields is optional structured data attached to a log line.
type Fields map[string]any

// SerializationFailedMarker replaces structured data that could not be marshalled.
const SerializationFailedMarker = "[serialization failed]"

// ErrSerializationDegraded is reported inside a log line whose structured data
// could not be marshalled. It is never returned to callers.
var ErrSerializationDegraded = errors.New("logger: structured data serialization degraded")

type Logger struct {
	threshold Level
	core      zapcore.Core
	name      string
}

type settings struct {
	timestamps bool
	name       string
}

// Option customizes a Logger at construction.
type Option func(*settings)

// WithTimestamps prefixes each line with an ISO8601 timestamp.
func WithTimestamps() Option {
	return func(s *settings) { s.timestamps = true }
}

// WithName tags each line with name.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// New returns a Logger writing lines at or above threshold to sink.
func New(threshold Level, sink io.Writer, opts ...Option) *Logger {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if sink == nil {
		sink = io.Discard
	}
	if !threshold.valid() {
		threshold = LevelOff
	}

	cfg := zapcore.EncoderConfig{
		LevelKey:         "level",
		NameKey:          "logger",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      encodeLevel,
		EncodeName:       zapcore.FullNameEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	if s.timestamps {
		cfg.TimeKey = "ts"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	enabler := zap.LevelEnablerFunc(func(z zapcore.Level) bool {
		if threshold == LevelOff {
			return false
		}
		return z >= threshold.zapLevel() && z <= LevelFatal.zapLevel()
	})

	return &Logger{
		threshold: threshold,
		core:      zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(zapcore.AddSync(sink)), enabler),
		name:      s.name,
	}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return New(LevelOff, io.Discard)
}

// Threshold returns the level fixed at construction.
func (l *Logger) Threshold() Level {
	if l == nil {
		return LevelOff
	}
	return l.threshold
}

// Enabled reports whether a line at level would be written.
func (l *Logger) Enabled(level Level) bool {
	if l == nil || level == LevelOff || !level.valid() || l.threshold == LevelOff {
		return false
	}
	return level >= l.threshold
}

// Emit writes msg at level if level is at or above the threshold. Multiple
// Fields are merged left to right; later keys win.
func (l *Logger) Emit(level Level, msg string, data ...Fields) {
	if !l.Enabled(level) {
		return
	}
	ent := zapcore.Entry{Level: level.zapLevel(), LoggerName: l.name, Time: time.Now(), Message: msg}
	if ce := l.core.Check(ent, nil); ce != nil {
		ce.Write(dataFields(data)...)
	}
}

func (l *Logger) Test(msg string, data ...Fields)  { l.Emit(LevelTest, msg, data...) }
func (l *Logger) Trace(msg string, data ...Fields) { l.Emit(LevelTrace, msg, data...) }
func (l *Logger) Debug(msg string, data ...Fields) { l.Emit(LevelDebug, msg, data...) }
func (l *Logger) Info(msg string, data ...Fields)  { l.Emit(LevelInfo, msg, data...) }
func (l *Logger) Warn(msg string, data ...Fields)  { l.Emit(LevelWarn, msg, data...) }
func (l *Logger) Error(msg string, data ...Fields) { l.Emit(LevelError, msg, data...) }

// Fatal writes at fatal severity. It does not terminate the process.
func (l *Logger) Fatal(msg string, data ...Fields) { l.Emit(LevelFatal, msg, data...) }

// Sync flushes the sink if it buffers.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	return l.core.Sync()
}

func dataFields(data []Fields) []zap.Field {
	if len(data) == 0 {
		return nil
	}
	merged := make(Fields)
	for _, d := range data {
		for k, v := range d {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return nil
	}
	b, err := marshalStable(merged)
	if err != nil {
		return []zap.Field{
			zap.String("data", SerializationFailedMarker),
			zap.NamedError("dataError", fmt.Errorf("%w: %v", ErrSerializationDegraded, err)),
		}
	}
	return []zap.Field{zap.Reflect("data", json.RawMessage(b))}
}

func marshalStable(v Fields) (b []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("marshal panicked: %v", r)
		}
	}()
	return json.Marshal(v)
}
