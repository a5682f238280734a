// Package seal implements the timelock workflow: encrypt a message against a
// future unlock time, poll its status and decrypt it once the key authority has
// released the key.
//
// The engine is stateless. Everything needed to decrypt travels in the
// encrypted_data envelope returned by Encrypt, and the authority alone decides
// when a key is released.
package seal

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"timelock/internal/timeauth"
	"timelock/internal/timeparse"
)

// Engine drives a key authority through the encrypt, status and decrypt paths.
// It is safe for concurrent use.
type Engine struct {
	authority   timeauth.Authority
	minLeadTime time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMinLeadTime overrides DefaultMinLeadTime.
func WithMinLeadTime(d time.Duration) Option {
	return func(e *Engine) { e.minLeadTime = d }
}

// WithClock sets the clock used for reference times the caller does not pass.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger for engine events. Plaintext is never logged.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an engine backed by authority.
func New(authority timeauth.Authority, opts ...Option) *Engine {
	e := &Engine{
		authority:   authority,
		minLeadTime: DefaultMinLeadTime,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authority returns the authority name recorded in new envelopes.
func (e *Engine) Authority() string {
	return e.authority.Name()
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// ResolveTime parses expr relative to now. Past instants are allowed.
func (e *Engine) ResolveTime(expr string, now time.Time) (timeparse.ResolvedTime, error) {
	return timeparse.Parse(expr, now)
}

// Encrypt seals message until the instant expr resolves to relative to now.
//
// A registration is made with the authority on every call, so encrypting the
// same message twice yields two unrelated identities. Registration failures
// are not retried.
func (e *Engine) Encrypt(ctx context.Context, message, expr string, now time.Time) (EncryptResult, error) {
	if message == "" {
		return EncryptResult{}, ErrEmptyMessage
	}
	if len(message) > MaxMessageSize {
		return EncryptResult{}, ErrMessageTooLarge
	}

	resolved, err := timeparse.Parse(expr, now)
	if err != nil {
		return EncryptResult{}, err
	}

	if secondsToDuration(resolved.Unix-now.Unix()) < e.minLeadTime {
		return EncryptResult{}, &LeadTimeError{
			UnlockTimestamp:    resolved.Unix,
			ReferenceTimestamp: now.Unix(),
			Minimum:            e.minLeadTime,
		}
	}

	reg, err := e.authority.Register(ctx, resolved.Unix)
	if err != nil {
		return EncryptResult{}, fmt.Errorf("registration failed: %w", err)
	}
	if reg.Identity == "" {
		return EncryptResult{}, errors.New("registration returned an empty identity")
	}

	encrypted, err := e.seal(reg, resolved.Unix, []byte(message))
	if err != nil {
		return EncryptResult{}, err
	}

	e.logger.Info("timelock registered",
		"authority", e.authority.Name(),
		"identity", reg.Identity,
		"unlock_timestamp", resolved.Unix,
		"source_form", resolved.Source,
	)

	return EncryptResult{
		Identity:          reg.Identity,
		EncryptedData:     encrypted,
		UnlockTimestamp:   resolved.Unix,
		UnlockDate:        resolved.HumanReadable,
		RegistrationProof: reg.Proof,
		Authority:         e.authority.Name(),
	}, nil
}

// seal encrypts plaintext under a fresh DEK, wraps the DEK with the
// authority and packs everything into an envelope.
func (e *Engine) seal(reg timeauth.Registration, unlockTimestamp int64, plaintext []byte) (string, error) {
	env := envelope{
		Version:         envelopeVersion,
		Authority:       e.authority.Name(),
		Identity:        reg.Identity,
		UnlockTimestamp: unlockTimestamp,
	}

	aad, err := env.header()
	if err != nil {
		return "", err
	}

	ciphertext, nonceB64, dek, err := EncryptPayload(plaintext, aad)
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}
	defer zero(dek)

	wrapped, err := e.authority.WrapKey(reg, dek)
	if err != nil {
		return "", fmt.Errorf("key wrap failed: %w", err)
	}

	env.WrappedKey = wrapped
	env.Nonce = nonceB64
	env.Ciphertext = base64.StdEncoding.EncodeToString(ciphertext)

	return env.encode()
}

// EncryptPayload encrypts plaintext using AES-256-GCM with a fresh DEK,
// authenticating aad alongside it.
// Returns ciphertext, nonce (base64), and the unwrapped DEK.
// The DEK must be wrapped before it leaves the process.
func EncryptPayload(plaintext, aad []byte) (ciphertext []byte, nonceB64 string, dek []byte, err error) {
	dek = make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, "", nil, fmt.Errorf("failed to generate DEK: %w", err)
	}

	gcm, err := newGCM(dek)
	if err != nil {
		return nil, "", nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, "", nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, aad)
	nonceB64 = base64.StdEncoding.EncodeToString(nonce)

	return ciphertext, nonceB64, dek, nil
}

// DecryptPayload reverses EncryptPayload.
func DecryptPayload(dek, ciphertext []byte, nonceB64 string, aad []byte) ([]byte, error) {
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}

	gcm, err := newGCM(dek)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("nonce must be %d bytes, got %d", gcm.NonceSize(), len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt payload: %w", err)
	}
	return plaintext, nil
}

func newGCM(dek []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(dek)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// zero clears key material from memory.
// secondsToDuration converts seconds to a Duration, saturating instead of
// overflowing for gaps beyond roughly 292 years.
func secondsToDuration(seconds int64) time.Duration {
	const limit = int64(math.MaxInt64 / int64(time.Second))
	switch {
	case seconds > limit:
		return time.Duration(math.MaxInt64)
	case seconds < -limit:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(seconds) * time.Second
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
