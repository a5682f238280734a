package timeauth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// FakeAuthority is a deterministic key authority for testing.
// It keeps registrations in memory and releases a key once its own clock
// reaches the registered unlock time. Failures can be injected per operation.
type FakeAuthority struct {
	// AuthorityName is the name returned by Name()
	AuthorityName string

	// Now is the authority's clock. Defaults to time.Now.
	Now func() time.Time

	// RegisterError simulates registration failures
	RegisterError error

	// FetchError simulates decryption key fetch failures
	FetchError error

	// StatusError simulates status query failures
	StatusError error

	// UnwrapError simulates key unwrap failures
	UnwrapError error

	mu      sync.Mutex
	seq     int
	records map[string]int64
	calls   map[string]int
}

func (f *FakeAuthority) Name() string {
	if f.AuthorityName == "" {
		return "fake"
	}
	return f.AuthorityName
}

func (f *FakeAuthority) Register(ctx context.Context, unlockTimestamp int64) (Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("register")

	if f.RegisterError != nil {
		return Registration{}, f.RegisterError
	}

	if f.records == nil {
		f.records = make(map[string]int64)
	}
	f.seq++
	identity := fmt.Sprintf("0x%064x", f.seq)
	f.records[identity] = unlockTimestamp

	return Registration{
		Identity:        identity,
		UnlockTimestamp: unlockTimestamp,
		KeyMaterial:     "0xfeed",
		Proof:           fmt.Sprintf("0x%064x", 1000+f.seq),
	}, nil
}

func (f *FakeAuthority) FetchDecryptionKey(ctx context.Context, identity string) (DecryptionKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("fetch")

	if f.FetchError != nil {
		return DecryptionKey{}, f.FetchError
	}

	released, err := f.released(identity)
	if err != nil {
		return DecryptionKey{}, err
	}
	if !released {
		return DecryptionKey{}, ErrNotYetAvailable
	}
	return DecryptionKey{Identity: identity, Key: "0xdecafbad"}, nil
}

func (f *FakeAuthority) QueryStatus(ctx context.Context, identity string) (StatusReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("status")

	if f.StatusError != nil {
		return StatusReport{}, f.StatusError
	}

	released, err := f.released(identity)
	if err != nil {
		return StatusReport{}, err
	}

	report := StatusReport{State: StateLocked, UnlockTimestamp: f.records[identity]}
	if released {
		report.State = StateReady
	}
	return report, nil
}

// WrapKey uses a simple reversible encoding bound to the identity.
func (f *FakeAuthority) WrapKey(reg Registration, dek []byte) (string, error) {
	return "FAKE_TLOCK:" + reg.Identity + ":" + base64.StdEncoding.EncodeToString(dek), nil
}

func (f *FakeAuthority) UnwrapKey(ctx context.Context, key DecryptionKey, wrapped string) ([]byte, error) {
	if f.UnwrapError != nil {
		return nil, f.UnwrapError
	}

	rest, ok := strings.CutPrefix(wrapped, "FAKE_TLOCK:")
	if !ok {
		return nil, errors.New("invalid fake tlock ciphertext")
	}
	identity, encoded, ok := strings.Cut(rest, ":")
	if !ok || identity != key.Identity {
		return nil, errors.New("fake tlock ciphertext bound to another identity")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Calls returns how many times op ("register", "fetch", "status") was invoked.
func (f *FakeAuthority) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeAuthority) released(identity string) (bool, error) {
	unlock, ok := f.records[identity]
	if !ok {
		return false, &RemoteAuthorityError{
			Op:         "fake.lookup",
			Category:   CategoryBadRequest,
			StatusCode: 400,
			Detail:     "unknown identity",
		}
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	return now().Unix() >= unlock, nil
}

func (f *FakeAuthority) count(op string) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}
