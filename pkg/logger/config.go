package logger

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the configuration for the logger
type Config struct {
	Level         string `yaml:"level"          mapstructure:"level"`
	FilePath      string `yaml:"path"           mapstructure:"path"`
	Format        string `yaml:"format"         mapstructure:"format"`
	EnableConsole bool   `yaml:"console"        mapstructure:"console"`
}

// Initialize sets up the global logger with the given configuration.
// With neither a file path nor console output the logger discards everything.
func Initialize(config Config) error {
	level := getZapLevel(config.Level)

	var cores []zapcore.Core

	if config.EnableConsole {
		consoleEncoderConfig := baseEncoderConfig()
		consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoderConfig.EncodeCaller = nil
		consoleEncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("15:04:05"))
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig),
			zapcore.AddSync(os.Stderr),
			level,
		))
	}

	if config.FilePath != "" {
		core, err := fileCore(config.FilePath, level, config.Format)
		if err != nil {
			return err
		}
		cores = append(cores, core)
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Named(loggerName)
	SetGlobalLogger(&Logger{Logger: l})
	return nil
}
