package seal

import (
	"context"
	"fmt"
	"strings"

	"timelock/internal/timeauth"
)

// Status asks the authority whether identity is locked or ready.
// It never consumes state and may be called any number of times.
func (e *Engine) Status(ctx context.Context, identity string) (StatusResult, error) {
	if strings.TrimSpace(identity) == "" {
		return StatusResult{}, ErrEmptyIdentity
	}

	report, err := e.authority.QueryStatus(ctx, identity)
	if err != nil {
		return StatusResult{}, fmt.Errorf("status check failed: %w", err)
	}

	result := StatusResult{
		Identity:        identity,
		UnlockTimestamp: report.UnlockTimestamp,
	}

	switch report.State {
	case timeauth.StateReady:
		result.State = OutcomeReady
		result.DecryptionAvailable = true
		result.NextStep = "call decrypt_timelock_message with this identity and the encrypted_data returned by timelock_encrypt"
	default:
		result.State = OutcomeLocked
		result.NextStep = "the key has not been released yet; check again after the unlock time"
	}

	e.logger.Debug("timelock status",
		"identity", identity,
		"status", result.State,
	)

	return result, nil
}
