// Package config loads daystreak settings from config.yaml and DAYSTREAK_*
// environment variables, with command-line flags taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/julianstephens/daystreak/internal/calendar"
	"github.com/julianstephens/daystreak/internal/constants"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# daystreak configuration

# SQLite file path or PostgreSQL URL (without password).
# Leave empty to use daystreak.db in this directory or the OS keyring.
# database:

# User id that owns habits and completions.
# user:

# IANA timezone used to decide which calendar day a completion belongs to.
timezone: Local

debug: false
`

// Config is the resolved application configuration.
type Config struct {
	Dir      string
	Database string
	User     string
	Timezone string
	Debug    bool
}

// Overrides are flag values; empty strings and false leave the loaded value alone.
type Overrides struct {
	Database string
	User     string
	Timezone string
	Debug    bool
}

// Load reads config.yaml from configDir, creating the directory and a default
// file on first run. A missing config.yaml is not an error.
func Load(configDir string, flags Overrides) (*Config, error) {
	v, err := newViper(configDir)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Dir:      configDir,
		Database: v.GetString(constants.ConfigKeyDatabase),
		User:     v.GetString(constants.ConfigKeyUser),
		Timezone: v.GetString(constants.ConfigKeyTimezone),
		Debug:    v.GetBool(constants.ConfigKeyDebug),
	}
	cfg.apply(flags)

	if !calendar.ValidateTimezone(cfg.Timezone) {
		return nil, fmt.Errorf("invalid timezone %q", cfg.Timezone)
	}
	return cfg, nil
}

func newViper(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(constants.ConfigKeyTimezone, constants.DefaultTimezone)
	v.SetDefault(constants.ConfigKeyDebug, false)
	v.SetConfigName(constants.ConfigFileName)
	v.SetConfigType(constants.ConfigFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv(constants.ConfigKeyDatabase, constants.EnvPrefix+"_DATABASE", constants.EnvDBConnection); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func (c *Config) apply(flags Overrides) {
	if flags.Database != "" {
		c.Database = flags.Database
	}
	if flags.User != "" {
		c.User = flags.User
	}
	if flags.Timezone != "" {
		c.Timezone = flags.Timezone
	}
	if flags.Debug {
		c.Debug = true
	}
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return calendar.LoadLocation(c.Timezone)
}

// Path returns the location of config.yaml.
func (c *Config) Path() string {
	return filepath.Join(c.Dir, constants.ConfigFileName+"."+constants.ConfigFileType)
}

func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, constants.ConfigFileName+"."+constants.ConfigFileType)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
