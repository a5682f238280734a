package timeauth

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies a failed call to the key authority.
type Category string

const (
	CategoryUnreachable       Category = "unreachable"
	CategoryBadRequest        Category = "bad_request"
	CategoryServerError       Category = "server_error"
	CategoryMalformedResponse Category = "malformed_response"
)

// RemoteAuthorityError is the single error type for failed authority calls.
// Calls are never retried; the caller decides whether to try again.
type RemoteAuthorityError struct {
	Op         string
	Category   Category
	StatusCode int
	Detail     string
	Err        error
}

func (e *RemoteAuthorityError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Category)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *RemoteAuthorityError) Unwrap() error {
	return e.Err
}

// Hint returns remediation guidance for the error's category.
func (e *RemoteAuthorityError) Hint() string {
	switch e.Category {
	case CategoryUnreachable:
		return "the key authority could not be reached; check connectivity and try the whole operation again later"
	case CategoryBadRequest:
		return "the key authority rejected the request; check the identity and unlock time"
	case CategoryServerError:
		return "the key authority failed to process the request; try again later"
	case CategoryMalformedResponse:
		return "the key authority returned an unexpected response; nothing was relied upon, try again later"
	default:
		return "try again later"
	}
}

// categoryForStatus maps a non-OK HTTP status to an error category.
func categoryForStatus(status int) Category {
	if status >= 400 && status < 500 {
		return CategoryBadRequest
	}
	return CategoryServerError
}

// isNotYetAvailable reports whether err is an HTTP answer meaning the key is
// still withheld.
func isNotYetAvailable(err error) bool {
	var rerr *RemoteAuthorityError
	if !errors.As(err, &rerr) {
		return false
	}
	return rerr.StatusCode == http.StatusNotFound || rerr.StatusCode == http.StatusTooEarly
}

func malformed(op, format string, args ...any) *RemoteAuthorityError {
	return &RemoteAuthorityError{
		Op:       op,
		Category: CategoryMalformedResponse,
		Detail:   fmt.Sprintf(format, args...),
	}
}
