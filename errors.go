package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Session errors are surfaced verbatim to the caller as rejected requests.
// The engine takes no corrective action for any of them.
var (
	// ErrDuplicateSession is returned by Start when a checkpoint already
	// exists for the session id.
	ErrDuplicateSession = errors.New("session already exists")

	// ErrUnknownSession is returned by Resume when no checkpoint exists.
	ErrUnknownSession = errors.New("unknown session")

	// ErrNotSuspended is returned by Resume when the session's last
	// checkpoint is terminal.
	ErrNotSuspended = errors.New("session is not suspended")

	// ErrStaleResume is returned when another Start or Resume call for the
	// same session is already in flight.
	ErrStaleResume = errors.New("another call for this session is in flight")

	// ErrCheckpointNotFound is returned by Store.Get when no checkpoint is
	// stored for the session id.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

// GraphDefinitionError indicates an invalid topology. It is always raised at
// graph construction time, never at run time.
type GraphDefinitionError struct {
	Message string
}

func (e *GraphDefinitionError) Error() string {
	return "invalid graph definition: " + e.Message
}

func newGraphDefinitionError(message string) *GraphDefinitionError {
	return &GraphDefinitionError{Message: message}
}

func newGraphDefinitionErrorf(format string, args ...any) *GraphDefinitionError {
	return &GraphDefinitionError{Message: fmt.Sprintf(format, args...)}
}

// RoutingError indicates that a router returned a key not present in its
// edge's selector map. This is an authoring bug in the topology, surfaced as
// a hard error on first traversal rather than routed around.
type RoutingError struct {
	Step string
	Key  string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("router for step %q returned unknown selector key %q", e.Step, e.Key)
}

// Error type constants for classification and matching
const (
	// ErrorTypeTimeout matches timeouts of external calls made by steps.
	ErrorTypeTimeout = "timeout"

	// ErrorTypeExternalCall matches any failed external call that is not a
	// timeout. These are retryable by a new turn: the checkpoint still
	// points at the failed step.
	ErrorTypeExternalCall = "external_call"

	// ErrorTypeFatal indicates an error that must not be retried.
	ErrorTypeFatal = "fatal_error"
)

// DialogueError represents a structured step error with classification.
// It supports Go's error wrapping patterns with Unwrap() method.
type DialogueError struct {
	Type    string `json:"type"`
	Cause   string `json:"cause"`
	Wrapped error  `json:"-"`
}

// Error implements the error interface
func (e *DialogueError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Cause)
}

// Unwrap implements the error unwrapping interface for Go's errors.Is and errors.As
func (e *DialogueError) Unwrap() error {
	return e.Wrapped
}

// NewDialogueError creates a new DialogueError with the specified type and
// cause. The type may be any string; the constants above cover the common
// classes.
func NewDialogueError(errorType, cause string) *DialogueError {
	return &DialogueError{Type: errorType, Cause: cause}
}

// ClassifyError attempts to classify a regular error into a DialogueError
func ClassifyError(err error) *DialogueError {
	var dialogueError *DialogueError
	if errors.As(err, &dialogueError) {
		return dialogueError
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return &DialogueError{
			Type:    ErrorTypeTimeout,
			Cause:   err.Error(),
			Wrapped: err,
		}
	}
	// Default to an external call error, which is retryable by a new turn
	return &DialogueError{
		Type:    ErrorTypeExternalCall,
		Cause:   err.Error(),
		Wrapped: err,
	}
}

// MatchesErrorType checks if an error matches a specified error type
func MatchesErrorType(err error, errorType string) bool {
	dErr := ClassifyError(err)
	// Fatal errors are only matched by the ErrorTypeFatal pattern
	if dErr.Type == ErrorTypeFatal {
		return errorType == ErrorTypeFatal
	}
	return dErr.Type == errorType
}
