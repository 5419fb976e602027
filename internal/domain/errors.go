package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPrecondition    = errors.New("precondition failed")
	ErrConfig          = errors.New("invalid configuration")
	ErrAuth            = errors.New("authentication failed")
	ErrTracker         = errors.New("issue tracker error")
	ErrAnalysis        = errors.New("analysis failed")
	ErrAnalysisTimeout = errors.New("analysis timed out")
	ErrNothingToCommit = errors.New("nothing to commit")
	ErrToolUnavailable = errors.New("ai tool not available")
	ErrProjectNotFound = errors.New("project not found")
	ErrUnsupportedTool = errors.New("unsupported ai tool")
)

// PreconditionError reports a failed pre-flight check. Nothing remote or
// destructive has happened when one is returned.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return "precondition failed: " + e.Reason }

func (e *PreconditionError) Unwrap() error { return ErrPrecondition }

// Preconditionf builds a PreconditionError from a format string.
func Preconditionf(format string, args ...any) error {
	return &PreconditionError{Reason: fmt.Sprintf(format, args...)}
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string { return e.Field + ": " + e.Reason }

func (e *ConfigError) Unwrap() error { return ErrConfig }

// APIError is a non-success response from the tracker.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("sonarqube api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("sonarqube api error: status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return ErrTracker }
