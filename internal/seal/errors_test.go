package seal

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"timelock/internal/timeauth"
	"timelock/internal/timeparse"
)

func TestDescribe(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		wantCategory string
		wantHelp     string
	}{
		{
			name:         "parse error",
			err:          &timeparse.ParseError{Expression: "soon", Reason: "unrecognized", Suggestion: timeparse.Suggestion},
			wantCategory: CategoryParse,
			wantHelp:     "3 months from now",
		},
		{
			name:         "lead time",
			err:          &LeadTimeError{UnlockTimestamp: 1735689630, ReferenceTimestamp: 1735689600, Minimum: time.Minute},
			wantCategory: CategoryLeadTime,
			wantHelp:     "1m0s",
		},
		{
			name: "wrapped remote error",
			err: fmt.Errorf("registration failed: %w", &timeauth.RemoteAuthorityError{
				Op:       "shutter.register_identity",
				Category: timeauth.CategoryUnreachable,
			}),
			wantCategory: "remote_unreachable",
			wantHelp:     "connectivity",
		},
		{
			name: "malformed response",
			err: &timeauth.RemoteAuthorityError{
				Op:       "shutter.get_decryption_key",
				Category: timeauth.CategoryMalformedResponse,
			},
			wantCategory: "remote_malformed_response",
			wantHelp:     "unexpected response",
		},
		{
			name:         "integrity",
			err:          &IntegrityError{Identity: "0x01", Reason: "encrypted data was produced for a different identity"},
			wantCategory: CategoryIntegrity,
			wantHelp:     "not retryable",
		},
		{
			name:         "invalid identity",
			err:          fmt.Errorf("status check failed: %w", timeauth.ErrInvalidIdentity),
			wantCategory: CategoryInvalidRequest,
		},
		{
			name:         "empty message",
			err:          ErrEmptyMessage,
			wantCategory: CategoryInvalidRequest,
		},
		{
			name:         "unknown",
			err:          errors.New("boom"),
			wantCategory: CategoryInternal,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := Describe(tc.err)
			assert.Equal(t, "error", res.Status)
			assert.Equal(t, tc.wantCategory, res.Category)
			assert.Equal(t, tc.err.Error(), res.Error)
			assert.NotEmpty(t, res.Help)
			if tc.wantHelp != "" {
				assert.Contains(t, res.Help, tc.wantHelp)
			}
		})
	}
}

func TestIntegrityError_Unwrap(t *testing.T) {
	cause := errors.New("gcm: message authentication failed")
	err := &IntegrityError{Identity: "0x01", Reason: "ciphertext failed authentication", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "0x01")
	assert.Contains(t, err.Error(), cause.Error())
}
