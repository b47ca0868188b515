package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/daystreak/internal/logger"
)

var (
	// ErrAlreadyCompleted is the no-op outcome of completing a habit twice on one day.
	ErrAlreadyCompleted = stderrors.New("habit already completed for this date")
	// ErrNotAuthenticated is returned when no user is configured.
	ErrNotAuthenticated = stderrors.New("no user configured (set --user or 'user' in config.yaml)")
)

// ValidationError reports input rejected before any mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a failure of the backing store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError for op. A nil err stays nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if stderrors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return stderrors.As(err, &ve)
}

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return stderrors.As(err, &pe)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}
