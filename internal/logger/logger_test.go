package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestInit(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "config")

	err := Init(Config{
		Debug:     false,
		ConfigDir: configDir,
	})
	if err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}
	defer Close()

	logDir := filepath.Join(configDir, "logs")
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		t.Errorf("Log directory was not created: %s", logDir)
	}

	if Logger == nil {
		t.Error("Logger is nil after initialization")
	}

	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message")
	Error("Test error message")
}

func TestInitDebugMode(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "config")

	if err := Init(Config{Debug: true, ConfigDir: configDir}); err != nil {
		t.Fatalf("Failed to initialize logger in debug mode: %v", err)
	}
	defer Close()

	if Logger.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", Logger.GetLevel())
	}
}

func TestInitLevelOverride(t *testing.T) {
	configDir := filepath.Join(t.TempDir(), "config")

	if err := Init(Config{ConfigDir: configDir, Level: "info"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer Close()
	if Logger.GetLevel() != log.InfoLevel {
		t.Errorf("level = %v, want info", Logger.GetLevel())
	}

	if err := Init(Config{ConfigDir: configDir, Level: "loud"}); err == nil {
		t.Error("Init() with an unknown level should fail")
	}
}

func TestInitWriter(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, log.InfoLevel)

	Info("habit completed", "habit", "h-1")
	Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "habit completed") || !strings.Contains(out, "h-1") {
		t.Errorf("log output = %q, want message and key/value", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message leaked at info level: %q", out)
	}
}

func TestLogFunctionsWithoutInit(t *testing.T) {
	Logger = nil

	// These should not panic when Logger is nil
	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message")
	Error("Test error message")
}
