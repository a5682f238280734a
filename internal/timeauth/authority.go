package timeauth

import (
	"context"
	"errors"
	"net/http"
)

// Authority is an external key authority that withholds decryption keys until an
// agreed unlock time.
//
// The authority, not the local clock, decides when a key is released. Callers
// must not infer unlock status from their own timestamp comparison: clock skew
// and remote scheduling determine actual release.
//
// The engine depends only on this interface. Shutter, drand and the test fake
// are interchangeable behind it.
type Authority interface {
	// Name returns the identifier recorded in envelopes sealed by this authority.
	Name() string

	// Register asks the authority to mint an identity bound to unlockTimestamp.
	// Calling it twice yields two independent identities.
	Register(ctx context.Context, unlockTimestamp int64) (Registration, error)

	// FetchDecryptionKey returns the released key for identity, or
	// ErrNotYetAvailable while the identity is still locked.
	FetchDecryptionKey(ctx context.Context, identity string) (DecryptionKey, error)

	// QueryStatus reports whether identity is locked or ready without returning
	// key material.
	QueryStatus(ctx context.Context, identity string) (StatusReport, error)

	// WrapKey binds a data-encryption key to a registration using the
	// registration's key material. The result is opaque.
	WrapKey(reg Registration, dek []byte) (string, error)

	// UnwrapKey recovers a data-encryption key from its wrapped form once the
	// decryption key has been released.
	UnwrapKey(ctx context.Context, key DecryptionKey, wrapped string) ([]byte, error)
}

// Registration is the authority's answer to a registration request.
type Registration struct {
	Identity        string
	UnlockTimestamp int64
	// KeyMaterial is the public material needed to encrypt locally
	// (eon key for Shutter, chain hash for drand).
	KeyMaterial string
	// Proof references the registration on the authority side, such as a
	// transaction hash. May be empty.
	Proof string
}

// DecryptionKey is a key released by the authority.
type DecryptionKey struct {
	Identity string
	Key      string
}

// State is the lock state of an identity as reported by the authority.
type State string

const (
	StateLocked State = "locked"
	StateReady  State = "ready"
)

// StatusReport is the result of QueryStatus.
type StatusReport struct {
	State State
	// UnlockTimestamp is the unlock time known to the authority, or 0 when the
	// authority does not report it.
	UnlockTimestamp int64
}

var (
	// ErrNotYetAvailable is returned while the authority withholds a key.
	ErrNotYetAvailable = errors.New("decryption key not yet available")

	// ErrInvalidIdentity is returned for identities this authority could never
	// have issued.
	ErrInvalidIdentity = errors.New("invalid identity")
)

// HTTPDoer is an interface for making HTTP requests.
// This allows injecting mock HTTP clients for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}
