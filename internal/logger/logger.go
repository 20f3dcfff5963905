package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the sugared logging interface used across the project
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Fatal(args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatalw(msg string, keysAndValues ...interface{})
	With(args ...interface{}) Logger
}

var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Log is the global logger instance
var Log Logger = newZapLogger()

type zapLogger struct {
	*zap.SugaredLogger
}

func newZapLogger() *zapLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		level,
	)

	return &zapLogger{zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()}
}

// With creates a new logger with contextual fields
// Example: logger.Log.With("request_code", "BR-2024-001")
func (l *zapLogger) With(args ...interface{}) Logger {
	return &zapLogger{l.SugaredLogger.With(args...)}
}

// SetLevel sets the global log level
// Valid levels: "debug", "info", "warn", "error", "fatal"
func SetLevel(lvl string) {
	if parsed, err := zapcore.ParseLevel(lvl); err == nil {
		level.SetLevel(parsed)
	}
}

// New creates a component-scoped logger. The log level is global and owned
// by SetLevel; component loggers never change it.
func New(name string) Logger {
	return Log.With("component", name)
}
