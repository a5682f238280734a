package seal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnvelope() envelope {
	return envelope{
		Version:         envelopeVersion,
		Authority:       "fake",
		Identity:        "0x01",
		UnlockTimestamp: 1735689720,
		WrappedKey:      "wrapped",
		Nonce:           "bm9uY2U=",
		Ciphertext:      "Y3Q=",
	}
}

func TestEnvelope_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*envelope)
	}{
		{"wrong version", func(e *envelope) { e.Version = 2 }},
		{"no authority", func(e *envelope) { e.Authority = "" }},
		{"no identity", func(e *envelope) { e.Identity = "" }},
		{"no unlock timestamp", func(e *envelope) { e.UnlockTimestamp = 0 }},
		{"no wrapped key", func(e *envelope) { e.WrappedKey = "" }},
		{"no nonce", func(e *envelope) { e.Nonce = "" }},
		{"no ciphertext", func(e *envelope) { e.Ciphertext = "" }},
	}

	require.NoError(t, validEnvelope().validate())

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := validEnvelope()
			tc.mutate(&env)
			assert.Error(t, env.validate())
		})
	}
}

func TestEnvelope_EncodeDecode(t *testing.T) {
	env := validEnvelope()

	encoded, err := env.encode()
	require.NoError(t, err)
	assert.Contains(t, encoded, EnvelopePrefix)

	decoded, err := decodeEnvelope(encoded)
	require.NoError(t, err)
	assert.Equal(t, env, decoded)

	// Surrounding whitespace from copy and paste is tolerated.
	decoded, err = decodeEnvelope("  " + encoded + "\n")
	require.NoError(t, err)
	assert.Equal(t, env, decoded)
}

func TestEnvelope_HeaderIsCanonical(t *testing.T) {
	env := validEnvelope()

	header, err := env.header()
	require.NoError(t, err)
	assert.Equal(t, `{"authority":"fake","identity":"0x01","unlock_timestamp":1735689720,"v":1}`, string(header))

	// Payload fields are not part of the header.
	env.Ciphertext = "b3RoZXI="
	other, err := env.header()
	require.NoError(t, err)
	assert.Equal(t, header, other)
}

func TestCheckBinding(t *testing.T) {
	env := validEnvelope()

	assert.NoError(t, checkBinding(env, "0x01", "fake"))

	var ierr *IntegrityError
	err := checkBinding(env, "0x02", "fake")
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "0x02", ierr.Identity)

	// Identities are compared byte for byte.
	assert.Error(t, checkBinding(env, "0X01", "fake"))
	assert.Error(t, checkBinding(env, "0x01 ", "fake"))

	err = checkBinding(env, "0x01", "shutter")
	assert.True(t, errors.As(err, &ierr))
}
