package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/daystreak/internal/constants"
)

var (
	// Logger is the global logger instance
	Logger *log.Logger

	fileWriter *lumberjack.Logger
)

// Config holds logger configuration
type Config struct {
	Debug     bool
	ConfigDir string
	// Level overrides the level implied by Debug ("debug", "info", "warn", "error").
	Level string
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	logDir := filepath.Join(cfg.ConfigDir, constants.LogDirName)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	level := log.WarnLevel
	if cfg.Debug {
		level = log.DebugLevel
	}
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	fileWriter = &lumberjack.Logger{
		Filename:   filepath.Join(logDir, constants.LogFileName),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	// Debug mode tees to stderr; otherwise the log file is the only sink.
	var writer io.Writer = fileWriter
	if cfg.Debug {
		writer = io.MultiWriter(os.Stderr, fileWriter)
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
	})

	return nil
}

// InitWriter points the global logger at w, for tests and embedding.
func InitWriter(w io.Writer, level log.Level) {
	Logger = log.NewWithOptions(w, log.Options{
		Level:  level,
		Prefix: constants.AppName,
	})
}

// Close flushes and closes the rotating log file, if one is open.
func Close() error {
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Info logs an info message
func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message
func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}
