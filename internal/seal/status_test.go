package seal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timelock/internal/timeauth"
)

func TestStatus_LockedThenReady(t *testing.T) {
	engine, authority, clock := newTestEngine(t)
	ctx := context.Background()

	enc, err := engine.Encrypt(ctx, "msg", "2 minutes from now", referenceTime)
	require.NoError(t, err)

	first, err := engine.Status(ctx, enc.Identity)
	require.NoError(t, err)
	second, err := engine.Status(ctx, enc.Identity)
	require.NoError(t, err)

	assert.Equal(t, first, second, "status is an idempotent read")
	assert.Equal(t, OutcomeLocked, first.State)
	assert.False(t, first.DecryptionAvailable)
	assert.Equal(t, enc.UnlockTimestamp, first.UnlockTimestamp)

	clock.Advance(2 * time.Minute)

	ready, err := engine.Status(ctx, enc.Identity)
	require.NoError(t, err)
	again, err := engine.Status(ctx, enc.Identity)
	require.NoError(t, err)

	assert.Equal(t, ready, again)
	assert.Equal(t, OutcomeReady, ready.State)
	assert.True(t, ready.DecryptionAvailable)
	assert.Contains(t, ready.NextStep, "decrypt_timelock_message")

	assert.Equal(t, 1, authority.Calls("register"))
	assert.Equal(t, 4, authority.Calls("status"))
	assert.Equal(t, 0, authority.Calls("fetch"), "status never fetches key material")

	// Status does not consume: decryption still works afterwards.
	res, err := engine.Decrypt(ctx, enc.Identity, enc.EncryptedData)
	require.NoError(t, err)
	assert.Equal(t, "msg", res.Message)
}

func TestStatus_EmptyIdentity(t *testing.T) {
	engine, authority, _ := newTestEngine(t)

	_, err := engine.Status(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyIdentity)
	assert.Equal(t, 0, authority.Calls("status"))
}

func TestStatus_RemoteFailure(t *testing.T) {
	engine, authority, _ := newTestEngine(t)
	authority.StatusError = &timeauth.RemoteAuthorityError{
		Op:       "shutter.get_decryption_key",
		Category: timeauth.CategoryMalformedResponse,
	}

	_, err := engine.Status(context.Background(), "0x01")

	var rerr *timeauth.RemoteAuthorityError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, timeauth.CategoryMalformedResponse, rerr.Category)
}

func TestStatus_InvalidIdentity(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	engine.authority.(*timeauth.FakeAuthority).StatusError = timeauth.ErrInvalidIdentity

	_, err := engine.Status(context.Background(), "nope")
	assert.ErrorIs(t, err, timeauth.ErrInvalidIdentity)
	assert.Equal(t, CategoryInvalidRequest, Describe(err).Category)
}
