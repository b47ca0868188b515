// Package keyring stores the PostgreSQL connection string in the OS keyring
// so credentials never appear on the command line or in config.yaml.
package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/daystreak/internal/constants"
)

var (
	// ErrNotFound is returned when no credentials are found in the keyring
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// GetConnectionString retrieves the database connection string from the OS keyring.
func GetConnectionString() (string, error) {
	connStr, err := keyring.Get(constants.AppName, constants.DefaultKeyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return connStr, nil
}

// SetConnectionString stores the database connection string in the OS keyring.
func SetConnectionString(connStr string) error {
	if strings.TrimSpace(connStr) == "" {
		return errors.New("connection string cannot be empty")
	}
	if err := keyring.Set(constants.AppName, constants.DefaultKeyringUser, connStr); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

// DeleteConnectionString removes the database connection string from the OS keyring.
func DeleteConnectionString() error {
	if err := keyring.Delete(constants.AppName, constants.DefaultKeyringUser); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}

// IsAvailable reports, best effort, whether the OS keyring answers.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// MaskPassword hides the password in a URL or key=value connection string.
func MaskPassword(connStr string) string {
	if idx := strings.Index(connStr, "://"); idx != -1 {
		rest := connStr[idx+3:]
		if at := strings.LastIndex(rest, "@"); at != -1 {
			userInfo := rest[:at]
			if colon := strings.Index(userInfo, ":"); colon != -1 {
				return connStr[:idx+3] + userInfo[:colon] + ":****" + rest[at:]
			}
		}
		return connStr
	}

	if !strings.Contains(connStr, "password=") {
		return connStr
	}
	parts := strings.Fields(connStr)
	for i, part := range parts {
		if strings.HasPrefix(part, "password=") {
			parts[i] = "password=****"
		}
	}
	return strings.Join(parts, " ")
}
