package timeauth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timelock/internal/testutil"
)

// contractAuthorities returns authorities whose key is already released.
func contractAuthorities(t *testing.T) map[string]Authority {
	t.Helper()

	drand, doer, _ := newTestDrandAuthority(1_000_000_000)
	doer.Responses["/public/5000"] = testutil.MakeDrandPublicResponse(5000)

	fake := &FakeAuthority{Now: func() time.Time { return time.Unix(testGenesis+3*5000, 0) }}

	return map[string]Authority{
		"fake":    fake,
		"shutter": newTestShutter(readyShutterDoer()),
		"drand":   drand,
	}
}

// TestAuthorityContract_RoundTrip verifies every authority can register, wrap,
// release and unwrap.
func TestAuthorityContract_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dek := []byte("0123456789abcdef0123456789abcdef")

	for name, auth := range contractAuthorities(t) {
		t.Run(name, func(t *testing.T) {
			require.NotEmpty(t, auth.Name())

			reg, err := auth.Register(ctx, testGenesis+3*5000)
			require.NoError(t, err)
			require.NotEmpty(t, reg.Identity)

			wrapped, err := auth.WrapKey(reg, dek)
			require.NoError(t, err)

			report, err := auth.QueryStatus(ctx, reg.Identity)
			require.NoError(t, err)
			assert.Equal(t, StateReady, report.State)

			key, err := auth.FetchDecryptionKey(ctx, reg.Identity)
			require.NoError(t, err)
			assert.Equal(t, reg.Identity, key.Identity)

			got, err := auth.UnwrapKey(ctx, key, wrapped)
			require.NoError(t, err)
			assert.Equal(t, dek, got)
		})
	}
}

func TestFakeAuthority_ImplementsInterface(t *testing.T) {
	var _ Authority = (*FakeAuthority)(nil)
	var _ Authority = (*ShutterAuthority)(nil)
	var _ Authority = (*DrandAuthority)(nil)
}

func TestFakeAuthority_LockedThenReady(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	fake := &FakeAuthority{Now: func() time.Time { return now }}
	ctx := context.Background()

	reg, err := fake.Register(ctx, now.Unix()+120)
	require.NoError(t, err)

	report, err := fake.QueryStatus(ctx, reg.Identity)
	require.NoError(t, err)
	assert.Equal(t, StateLocked, report.State)
	assert.Equal(t, now.Unix()+120, report.UnlockTimestamp)

	_, err = fake.FetchDecryptionKey(ctx, reg.Identity)
	assert.ErrorIs(t, err, ErrNotYetAvailable)

	now = now.Add(2 * time.Minute)

	report, err = fake.QueryStatus(ctx, reg.Identity)
	require.NoError(t, err)
	assert.Equal(t, StateReady, report.State)

	_, err = fake.FetchDecryptionKey(ctx, reg.Identity)
	assert.NoError(t, err)

	assert.Equal(t, 1, fake.Calls("register"))
	assert.Equal(t, 2, fake.Calls("status"))
	assert.Equal(t, 2, fake.Calls("fetch"))
}

func TestFakeAuthority_UnknownIdentity(t *testing.T) {
	fake := &FakeAuthority{}

	_, err := fake.QueryStatus(context.Background(), "0xunknown")
	var rerr *RemoteAuthorityError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, CategoryBadRequest, rerr.Category)
	assert.Equal(t, http.StatusBadRequest, rerr.StatusCode)
}

func TestNewAuthority(t *testing.T) {
	shutter, err := NewAuthority(Options{})
	require.NoError(t, err)
	assert.Equal(t, "shutter", shutter.Name())
	assert.Equal(t, DefaultShutterAPIBase, shutter.(*ShutterAuthority).APIBase)

	drand, err := NewAuthority(Options{Kind: "drand"})
	require.NoError(t, err)
	assert.Equal(t, "drand", drand.Name())
	assert.Equal(t, DefaultDrandBaseURL+"/"+drandQuicknetChainHash, drand.(*DrandAuthority).BaseURL)

	_, err = NewAuthority(Options{Kind: "sundial"})
	assert.Error(t, err)
}
