package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	mu    sync.RWMutex
	sugar = newLogger(os.Stderr)
)

// levelLabel renders levels as "[WARN ]", "[ERROR]", ...
func levelLabel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("[%-5s]", l.CapitalString()))
}

func newLogger(w io.Writer) *zap.SugaredLogger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05"),
		EncodeLevel:      levelLabel,
		ConsoleSeparator: " ",
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Init sets the minimum level: debug, info, warn or error.
func Init(levelName string) error {
	name := strings.ToLower(strings.TrimSpace(levelName))
	if name == "" {
		name = "info"
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("log level %q: %w", levelName, err)
	}
	level.SetLevel(l)
	return nil
}

// SetOutput redirects log output, stderr by default.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	sugar = newLogger(w)
}

// Sync flushes buffered output.
func Sync() {
	_ = current().Sync()
}

// Fatal logs with a fatal label and exits.
// Arguments are handled in the manner of [fmt.Printf].
func Fatal(format string, args ...interface{}) {
	current().Fatalf(format, args...)
}

// Error logs with an error label.
// Arguments are handled in the manner of [fmt.Printf].
func Error(format string, args ...interface{}) {
	current().Errorf(format, args...)
}

// Warn logs with a warn label.
// Arguments are handled in the manner of [fmt.Printf].
func Warn(format string, args ...interface{}) {
	current().Warnf(format, args...)
}

// Info logs with an info label.
// Arguments are handled in the manner of [fmt.Printf].
func Info(format string, args ...interface{}) {
	current().Infof(format, args...)
}

// Debug logs with a debug label.
// Arguments are handled in the manner of [fmt.Printf].
func Debug(format string, args ...interface{}) {
	current().Debugf(format, args...)
}
