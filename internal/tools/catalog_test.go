package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timelock/internal/seal"
	"timelock/internal/timeauth"
)

func TestCatalog_Validate(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)

	assert.NoError(t, catalog.Validate(ToolEncrypt, map[string]any{"message": "m", "unlock_time": "1 day from now"}))
	assert.NoError(t, catalog.Validate(ToolUnixTime, nil))
	assert.NoError(t, catalog.Validate(ToolExplain, map[string]any{}))

	assert.Error(t, catalog.Validate(ToolEncrypt, map[string]any{"message": "m"}))
	assert.Error(t, catalog.Validate(ToolDecrypt, map[string]any{"identity": "0x01", "encrypted_data": ""}))
	assert.Error(t, catalog.Validate(ToolCurrentTime, map[string]any{"tz": "UTC"}))
	assert.Error(t, catalog.Validate("unknown", nil))

	assert.True(t, catalog.Has(ToolStatus))
	assert.False(t, catalog.Has("unknown"))
}

func TestToolbox_UnknownTool(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)
	box := NewToolbox(seal.New(&timeauth.FakeAuthority{}), catalog, discardLogger())

	_, err = box.Call(context.Background(), "sudo", nil)
	assert.True(t, errors.Is(err, ErrUnknownTool))
}

func TestToolbox_EncryptUsesEngineClock(t *testing.T) {
	catalog, err := NewCatalog()
	require.NoError(t, err)

	clock := &testClock{now: referenceTime}
	engine := seal.New(&timeauth.FakeAuthority{Now: clock.Now}, seal.WithClock(clock.Now), seal.WithLogger(discardLogger()))
	box := NewToolbox(engine, catalog, discardLogger())

	res, err := box.Call(context.Background(), ToolEncrypt, map[string]any{
		"message":     "hi",
		"unlock_time": "3 months from now",
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	payload := res.Payload.(encryptPayload)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC).Unix(), payload.UnlockTimestamp)
	assert.Equal(t, "fake", payload.Authority)
	assert.Len(t, payload.Instructions.HowToDecrypt, 4)
}
