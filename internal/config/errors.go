package config

import (
	"errors"
	"fmt"
)

var (
	// ErrValidationFailed matches every *ValidationError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrFileNotFound is returned when a config file named with WithFile
	// does not exist. Files found by searching are optional.
	ErrFileNotFound = errors.New("config file not found")
)

// ValidationErrorCode classifies a rejected setting.
type ValidationErrorCode string

const (
	ErrCodeOutOfRange      ValidationErrorCode = "out_of_range"
	ErrCodeInvalidEnum     ValidationErrorCode = "invalid_enum"
	ErrCodeRequiredMissing ValidationErrorCode = "required_missing"
	// ErrCodeTypeMismatch is used when a file or environment value does
	// not decode into the setting's type, e.g. "fast" for a duration.
	ErrCodeTypeMismatch ValidationErrorCode = "type_mismatch"
)

func (c ValidationErrorCode) String() string { return string(c) }

// ValidationError reports one rejected setting by its dotted path, e.g.
// "fdb.idle_poll".
type ValidationError struct {
	Path    string
	Message string
	Value   any
	Code    ValidationErrorCode
}

func (e *ValidationError) Error() string {
	switch {
	case e.Path == "":
		return e.Message
	case e.Value == nil:
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	default:
		return fmt.Sprintf("%s: %s (got %v)", e.Path, e.Message, e.Value)
	}
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
