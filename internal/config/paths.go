package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/julianstephens/daystreak/internal/constants"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/daystreak (fallback ~/.config/daystreak)
// macOS:   ~/Library/Application Support/daystreak
// Windows: %APPDATA%/daystreak
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, constants.ConfigDirName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", constants.ConfigDirName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.ConfigDirName), nil
}

// ResolveConfigDir applies the precedence flag > DAYSTREAK_CONFIG_DIR > platform default.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(expandHome(flag))
	}
	if env := os.Getenv(constants.EnvConfigDir); env != "" {
		return filepath.Abs(expandHome(env))
	}
	return DefaultConfigDir()
}

// DefaultDatabasePath is the SQLite file used when no database is configured.
func DefaultDatabasePath(configDir string) string {
	return filepath.Join(configDir, constants.DatabaseName)
}

func expandHome(path string) string {
	if path == "~" || (len(path) > 1 && path[:2] == "~/") {
		home, err := platformDir.homeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
