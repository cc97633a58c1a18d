package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrBodyTooLarge is returned by a Fetcher when the response exceeds its size
// limit. Truncated bodies are never returned.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// ErrorKind is the stable, machine-readable failure classification.
type ErrorKind string

// Failure classifications surfaced to callers.
const (
	KindInputInvalid      ErrorKind = "InputInvalid"
	KindUnsupportedTarget ErrorKind = "UnsupportedTarget"
	KindFetchError        ErrorKind = "FetchError"
	KindParseError        ErrorKind = "ParseError"
	KindSessionInitFailed ErrorKind = "SessionInitFailed"
	KindNavigationFailed  ErrorKind = "NavigationFailed"
	KindGateStepFailed    ErrorKind = "GateStepFailed"
	KindUnexpectedError   ErrorKind = "UnexpectedError"
)

// Structural reports whether the failure points at remote page drift rather
// than a transient fault. Structural failures need developer attention.
func (k ErrorKind) Structural() bool {
	return k == KindParseError || k == KindGateStepFailed
}

// Error is the typed failure value every component boundary converts to.
type Error struct {
	Kind    ErrorKind
	Message string
	// Step is the zero-based gate index for KindGateStepFailed, -1 otherwise.
	Step        int
	Description string
	// Diagnostic references a stored page snapshot, if one was captured.
	Diagnostic string
	// StatusCode is the upstream HTTP status for KindFetchError, 0 if none.
	StatusCode int
	Err        error
}

// NewError builds an Error of the given kind wrapping cause.
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Step: -1, Err: cause}
}

// StepError builds a KindGateStepFailed error for the given step.
func StepError(step int, description string, cause error) *Error {
	return &Error{
		Kind:        KindGateStepFailed,
		Message:     fmt.Sprintf("gate step %d (%s) failed", step, description),
		Step:        step,
		Description: description,
		Err:         cause,
	}
}

// Error implements error.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Code renders the kind as returned to callers; gate failures carry their index.
func (e *Error) Code() string {
	if e.Kind == KindGateStepFailed && e.Step >= 0 {
		return string(e.Kind) + ":" + strconv.Itoa(e.Step)
	}
	return string(e.Kind)
}

// DeadlineExceeded reports whether the overall request deadline, rather than
// a step or fetch timeout, ended the call.
func (e *Error) DeadlineExceeded() bool {
	return e.Kind == KindUnexpectedError && errors.Is(e.Err, context.DeadlineExceeded)
}

// AsError converts any error into an *Error. Unclassified errors become
// KindUnexpectedError so nothing crosses a boundary unconverted.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr
	}
	return NewError(KindUnexpectedError, "unexpected failure", err)
}

// KindOf returns the classification of err, or "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsError(err).Kind
}

// HTTPStatusError reports a non-2xx upstream response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}
