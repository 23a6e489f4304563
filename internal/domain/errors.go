package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies submission failures.
type ErrorKind string

const (
	ErrorKindPermissionDenied ErrorKind = "permission_denied"
	ErrorKindEmptyInput       ErrorKind = "empty_input"
	ErrorKindNetworkFailure   ErrorKind = "network_failure"
	ErrorKindServerError      ErrorKind = "server_error"
)

// SubmissionError carries an ErrorKind alongside its cause.
type SubmissionError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (http %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// NewSubmissionError wraps err with kind.
func NewSubmissionError(kind ErrorKind, err error) *SubmissionError {
	return &SubmissionError{Kind: kind, Err: err}
}

// KindOf returns the ErrorKind carried by err, or "" when err is untyped.
func KindOf(err error) ErrorKind {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Kind
	}
	return ""
}
