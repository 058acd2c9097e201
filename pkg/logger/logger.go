package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LogFilePermissions = 0600
	InfoLogLevel       = "info"
	DefaultLogPath     = "/tmp/piwakawaka.log"
	loggerName         = "piwakawaka"
)

var (
	globalLogger *zap.Logger
	loggerMutex  sync.RWMutex

	// GlobalLogFile is the file opened by Initialize, if any.
	GlobalLogFile *os.File
)

// Logger is a wrapper around zap.Logger
type Logger struct {
	*zap.Logger
}

// Field is a type alias for zap.Field for convenience
type Field = zap.Field

// Common field constructors
var (
	String   = zap.String
	Strings  = zap.Strings
	Int      = zap.Int
	Int64    = zap.Int64
	Bool     = zap.Bool
	Duration = zap.Duration
	Err      = zap.Error
	Any      = zap.Any
)

// InitProduction installs the default global logger: info level, file output only.
func InitProduction() {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger != nil {
		return
	}
	core, err := fileCore(DefaultLogPath, zapcore.InfoLevel, "console")
	if err != nil {
		globalLogger = zap.NewNop()
		return
	}
	globalLogger = zap.New(core, zap.AddCaller()).Named(loggerName)
}

// Get returns the global logger instance
func Get() *Logger {
	loggerMutex.RLock()
	l := globalLogger
	loggerMutex.RUnlock()
	if l == nil {
		InitProduction()
		loggerMutex.RLock()
		l = globalLogger
		loggerMutex.RUnlock()
	}
	return &Logger{Logger: l}
}

// SetGlobalLogger replaces the global logger and returns the previous one.
func SetGlobalLogger(l *Logger) *Logger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	prev := globalLogger
	if l == nil || l.Logger == nil {
		globalLogger = nil
	} else {
		globalLogger = l.Logger
	}
	if prev == nil {
		return nil
	}
	return &Logger{Logger: prev}
}

// NewNopLogger returns a no-op Logger
func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// With creates a child logger and adds structured context to it
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Logger.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.Logger.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Logger.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Logger.Error(fmt.Sprintf(format, args...))
}

func getZapLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func baseEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func fileCore(path string, level zapcore.Level, format string) (zapcore.Core, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, LogFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	if GlobalLogFile != nil {
		_ = GlobalLogFile.Close()
	}
	GlobalLogFile = file

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(baseEncoderConfig())
	} else {
		encoder = zapcore.NewConsoleEncoder(baseEncoderConfig())
	}
	return zapcore.NewCore(encoder, zapcore.AddSync(file), level), nil
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("[%s]", t.Format("2006-01-02 15:04:05")))
}
