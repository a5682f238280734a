package seal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"timelock/internal/timeauth"
)

// Decrypt recovers the message sealed in encryptedData for identity.
//
// While the authority withholds the key the result is OutcomeLocked with a nil
// error; this is the expected answer before the unlock time. There is no local
// clock gate: the engine clock is used only to report the remaining time.
//
// Any mismatch between identity and encryptedData fails with *IntegrityError
// and never returns plaintext.
func (e *Engine) Decrypt(ctx context.Context, identity, encryptedData string) (DecryptResult, error) {
	if strings.TrimSpace(identity) == "" {
		return DecryptResult{}, ErrEmptyIdentity
	}

	env, err := decodeEnvelope(encryptedData)
	if err != nil {
		return DecryptResult{}, &IntegrityError{Identity: identity, Reason: "encrypted data is malformed", Err: err}
	}

	if err := checkBinding(env, identity, e.authority.Name()); err != nil {
		e.logger.Warn("timelock binding mismatch", "identity", identity, "error", err)
		return DecryptResult{}, err
	}

	key, err := e.authority.FetchDecryptionKey(ctx, identity)
	if errors.Is(err, timeauth.ErrNotYetAvailable) {
		return e.locked(env), nil
	}
	if err != nil {
		return DecryptResult{}, fmt.Errorf("decryption key fetch failed: %w", err)
	}

	dek, err := e.authority.UnwrapKey(ctx, key, env.WrappedKey)
	if errors.Is(err, timeauth.ErrNotYetAvailable) {
		return e.locked(env), nil
	}
	if err != nil {
		return DecryptResult{}, &IntegrityError{Identity: identity, Reason: "wrapped key does not open with the released key", Err: err}
	}
	defer zero(dek)

	plaintext, err := e.open(env, dek)
	if err != nil {
		return DecryptResult{}, &IntegrityError{Identity: identity, Reason: "ciphertext failed authentication", Err: err}
	}

	e.logger.Info("timelock decrypted",
		"authority", env.Authority,
		"identity", identity,
	)

	return DecryptResult{
		Identity:        identity,
		Outcome:         OutcomeReady,
		Message:         string(plaintext),
		UnlockTimestamp: env.UnlockTimestamp,
	}, nil
}

func (e *Engine) open(env envelope, dek []byte) ([]byte, error) {
	aad, err := env.header()
	if err != nil {
		return nil, err
	}
	ciphertext, err := env.ciphertext()
	if err != nil {
		return nil, err
	}
	return DecryptPayload(dek, ciphertext, env.Nonce, aad)
}

// locked builds the Locked outcome. Remaining is clamped at zero because the
// authority may lag the local clock.
func (e *Engine) locked(env envelope) DecryptResult {
	seconds := max(env.UnlockTimestamp-e.now().Unix(), 0)
	return DecryptResult{
		Identity:         env.Identity,
		Outcome:          OutcomeLocked,
		UnlockTimestamp:  env.UnlockTimestamp,
		Remaining:        secondsToDuration(seconds),
		RemainingSeconds: seconds,
	}
}
