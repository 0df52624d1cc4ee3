package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is a totally ordered log severity.
//
// The zero value is LevelTest, the most verbose level. LevelOff sorts above
// every emitting level and disables output when used as a threshold.
type Level int8

const (
	LevelTest Level = iota
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	LevelOff
)

var levelNames = [...]string{
	LevelTest:  "test",
	LevelTrace: "trace",
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelFatal: "fatal",
	LevelOff:   "off",
}

// Levels returns every level in ascending order.
func Levels() []Level {
	return []Level{LevelTest, LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal, LevelOff}
}

func (l Level) valid() bool { return l >= LevelTest && l <= LevelOff }

func (l Level) String() string {
	if !l.valid() {
		return fmt.Sprintf("Level(%d)", int8(l))
	}
	return levelNames[l]
}

// CapitalString returns the upper-case tag used in emitted lines.
func (l Level) CapitalString() string {
	return strings.ToUpper(l.String())
}

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("logger: unknown level %q", s)
}

func (l Level) MarshalText() ([]byte, error) {
	if !l.valid() {
		return nil, fmt.Errorf("logger: invalid level %d", int8(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// zapLevel maps onto zapcore levels. test and trace sit below zap's debug.
func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelTest:
		return zapcore.DebugLevel - 2
	case LevelTrace:
		return zapcore.DebugLevel - 1
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.FatalLevel + 1
	}
}

func fromZapLevel(z zapcore.Level) Level {
	for _, l := range Levels() {
		if l.zapLevel() == z {
			return l
		}
	}
	return LevelOff
}

func encodeLevel(z zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + fromZapLevel(z).CapitalString() + "]")
}
