package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned when settings are missing or invalid.
	ErrConfig = errors.New("invalid configuration")
	// ErrEmptyInput is returned when there is no indexable content.
	ErrEmptyInput = errors.New("no indexable content")
	// ErrCollaborator is returned when an embedding, completion or storage backend call fails.
	ErrCollaborator = errors.New("external service error")
	// ErrAuth is returned when the storage backend rejects the configured credentials.
	ErrAuth = errors.New("storage credentials rejected")
	// ErrNotFound is returned when a requested index or resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBuildInProgress is returned when an index build is started while another one is running.
	ErrBuildInProgress = errors.New("index build already in progress")
)

// ConfigError represents an invalid or missing setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error on field %s: %s", e.Field, e.Message)
}

// Is reports ConfigError as ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// NewConfigError builds a ConfigError with a formatted message.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// CollaboratorError wraps a failure returned by an external backend.
type CollaboratorError struct {
	Collaborator string // "embedding", "completion", "storage", "notes"
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Is reports CollaboratorError as ErrCollaborator. Auth and not-found causes
// still match through Unwrap.
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaborator
}

// Collaborator wraps err as a CollaboratorError. It returns nil for a nil error
// and leaves errors that already carry the collaborator kind untouched.
func Collaborator(collaborator, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCollaborator) {
		return err
	}
	return &CollaboratorError{Collaborator: collaborator, Op: op, Err: err}
}

// Auth wraps err so that it matches ErrAuth.
func Auth(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", msg, ErrAuth)
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrAuth, err)
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
