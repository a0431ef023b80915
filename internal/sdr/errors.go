package sdr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrPrecondition marks a local problem detected before any network call,
	// such as a missing file or a file/document mismatch.
	ErrPrecondition = errors.New("precondition failed")

	// Unexpected response kinds.
	ErrBadRequest       = errors.New("bad request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTokenExpired     = errors.New("token expired")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// tokenExpiredMarker is how the server tells an expired token apart from a bad one.
const tokenExpiredMarker = "token has expired"

// PreconditionError reports a fatal local condition naming the offending path.
type PreconditionError struct {
	Path   string
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

// NewFileNotFound returns the error for a local file that does not exist.
func NewFileNotFound(path string) *PreconditionError {
	return &PreconditionError{Path: path, Reason: fmt.Sprintf("file not found: %s", path)}
}

// UnexpectedResponseError carries the status and body of a failed API call.
type UnexpectedResponseError struct {
	Op         string
	StatusCode int
	Body       string
	Kind       error
}

// NewUnexpectedResponse classifies a non-success response.
func NewUnexpectedResponse(op string, status int, body []byte) *UnexpectedResponseError {
	e := &UnexpectedResponseError{Op: op, StatusCode: status, Body: string(body)}
	switch {
	case status == http.StatusBadRequest:
		e.Kind = ErrBadRequest
	case status == http.StatusUnauthorized && strings.Contains(strings.ToLower(e.Body), tokenExpiredMarker):
		e.Kind = ErrTokenExpired
	case status == http.StatusUnauthorized:
		e.Kind = ErrUnauthorized
	default:
		e.Kind = ErrUnexpectedStatus
	}
	return e
}

func (e *UnexpectedResponseError) Error() string {
	switch e.Kind {
	case ErrBadRequest:
		return fmt.Sprintf("%s: the server rejected the request (%d): %s", e.Op, e.StatusCode, e.Body)
	case ErrTokenExpired:
		return fmt.Sprintf("%s: your token has expired, run `sdr login` again", e.Op)
	case ErrUnauthorized:
		return fmt.Sprintf("%s: not authorized (%d): %s", e.Op, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s: unexpected response %d: %s", e.Op, e.StatusCode, e.Body)
	}
}

func (e *UnexpectedResponseError) Unwrap() error {
	return e.Kind
}
