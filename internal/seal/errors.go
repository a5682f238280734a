package seal

import (
	"errors"
	"fmt"
	"time"

	"timelock/internal/timeauth"
	"timelock/internal/timeparse"
)

var (
	ErrEmptyMessage    = errors.New("message is empty")
	ErrMessageTooLarge = fmt.Errorf("message exceeds maximum size of %d bytes", MaxMessageSize)
	ErrEmptyIdentity   = errors.New("identity is required")
)

// LeadTimeError rejects unlock times too close to the reference time.
type LeadTimeError struct {
	UnlockTimestamp    int64
	ReferenceTimestamp int64
	Minimum            time.Duration
}

func (e *LeadTimeError) Error() string {
	return fmt.Sprintf("unlock time %s is less than %s after %s",
		time.Unix(e.UnlockTimestamp, 0).UTC().Format(time.RFC3339),
		e.Minimum,
		time.Unix(e.ReferenceTimestamp, 0).UTC().Format(time.RFC3339))
}

// IntegrityError reports encrypted data that does not belong to the identity
// it was presented with, or that fails authentication. It is never retryable.
type IntegrityError struct {
	Identity string
	Reason   string
	Err      error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("integrity check failed for %s: %s: %v", e.Identity, e.Reason, e.Err)
	}
	return fmt.Sprintf("integrity check failed for %s: %s", e.Identity, e.Reason)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// ErrorResult is the structured form of an engine error.
type ErrorResult struct {
	Status   string `json:"status"`
	Category string `json:"category"`
	Error    string `json:"error"`
	Help     string `json:"help"`
}

// Error categories reported in ErrorResult.
const (
	CategoryParse          = "parse_error"
	CategoryLeadTime       = "lead_time"
	CategoryIntegrity      = "integrity"
	CategoryInvalidRequest = "invalid_request"
	CategoryInternal       = "internal"
	categoryRemotePrefix   = "remote_"
)

// Describe classifies err and attaches remediation guidance.
func Describe(err error) ErrorResult {
	res := ErrorResult{Status: "error", Error: err.Error()}

	var (
		perr *timeparse.ParseError
		lerr *LeadTimeError
		rerr *timeauth.RemoteAuthorityError
		ierr *IntegrityError
	)

	switch {
	case errors.As(err, &perr):
		res.Category = CategoryParse
		res.Help = "Try " + perr.Suggestion

	case errors.As(err, &lerr):
		res.Category = CategoryLeadTime
		res.Help = fmt.Sprintf("choose an unlock time at least %s in the future, for example '5 minutes from now'", lerr.Minimum)

	case errors.As(err, &ierr):
		res.Category = CategoryIntegrity
		res.Help = "pass the exact identity and encrypted_data returned together by timelock_encrypt; this is not retryable"

	case errors.As(err, &rerr):
		res.Category = categoryRemotePrefix + string(rerr.Category)
		res.Help = rerr.Hint()

	case errors.Is(err, timeauth.ErrInvalidIdentity),
		errors.Is(err, ErrEmptyIdentity),
		errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrMessageTooLarge):
		res.Category = CategoryInvalidRequest
		res.Help = "check the arguments and call the tool again"

	default:
		res.Category = CategoryInternal
		res.Help = "unexpected failure; try again later"
	}

	return res
}
