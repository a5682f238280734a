package timeauth

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/drand/tlock"
	thttp "github.com/drand/tlock/networks/http"
	"github.com/google/uuid"
)

// drandQuicknetChainHash is the chain hash for drand quicknet.
const drandQuicknetChainHash = "52db9ba70e0cc0f6eaf7803dd07447a1f5477735fd3f661792ba94600c84e971"

// DefaultDrandBaseURL is the public drand HTTP relay.
const DefaultDrandBaseURL = "https://api.drand.sh"

// TimelockBox abstracts tlock encryption/decryption for testing.
type TimelockBox interface {
	// Encrypt time-locks the DEK to the target round.
	// Returns base64-encoded ciphertext.
	Encrypt(dek []byte, targetRound uint64) (string, error)

	// Decrypt decrypts the tlock ciphertext.
	// Ciphertext is base64-encoded.
	Decrypt(ciphertextB64 string) ([]byte, error)
}

// DrandAuthority is a key authority based on the drand public randomness beacon.
//
// An identity names a beacon round. The round signature, published once the
// round is reached, is the decryption key; tlock uses it to open the DEK.
// Identities have the form "<network>:<round>:<uuid>" so that two
// registrations for the same round stay distinct.
type DrandAuthority struct {
	NetworkName string
	BaseURL     string
	ChainHash   string
	HTTPClient  HTTPDoer    // injectable HTTP client
	Timelock    TimelockBox // injectable tlock implementation
	Timeout     time.Duration

	mu   sync.Mutex
	info *DrandInfo // cached network info
}

type DrandInfo struct {
	Period      int    `json:"period"`
	GenesisTime int64  `json:"genesis_time"`
	Hash        string `json:"hash"`
	GroupHash   string `json:"groupHash"`
	SchemeID    string `json:"schemeID"`
	BeaconID    string `json:"beaconID"`
}

func (i *DrandInfo) validate() error {
	if i.Period <= 0 {
		return fmt.Errorf("invalid period %d", i.Period)
	}
	if i.GenesisTime <= 0 {
		return fmt.Errorf("invalid genesis time %d", i.GenesisTime)
	}
	return nil
}

type drandPublicResponse struct {
	Round      uint64 `json:"round"`
	Randomness string `json:"randomness"`
	Signature  string `json:"signature"`
}

func (r *drandPublicResponse) validate() error {
	if r.Round == 0 {
		return errors.New("missing round")
	}
	return nil
}

func (d *DrandAuthority) Name() string {
	return "drand"
}

// RoundAt calculates the drand round number for a given unlock time.
func (d *DrandAuthority) RoundAt(ctx context.Context, unlockTimestamp int64) (uint64, error) {
	info, err := d.FetchInfo(ctx)
	if err != nil {
		return 0, err
	}

	// Round number = (unix_time - genesis_time) / period
	elapsedSeconds := unlockTimestamp - info.GenesisTime
	if elapsedSeconds < 0 {
		return 0, &RemoteAuthorityError{Op: "drand.round_at", Category: CategoryBadRequest, Detail: "unlock time is before drand genesis"}
	}

	targetRound := uint64(elapsedSeconds) / uint64(info.Period)

	// Round up to ensure we're at or after the unlock time
	if uint64(elapsedSeconds)%uint64(info.Period) != 0 {
		targetRound++
	}

	return targetRound, nil
}

// Register maps unlockTimestamp to a beacon round and mints an identity for it.
// No network state is created; the round itself is the registration.
func (d *DrandAuthority) Register(ctx context.Context, unlockTimestamp int64) (Registration, error) {
	round, err := d.RoundAt(ctx, unlockTimestamp)
	if err != nil {
		return Registration{}, err
	}

	return Registration{
		Identity:        fmt.Sprintf("%s:%d:%s", d.NetworkName, round, uuid.NewString()),
		UnlockTimestamp: unlockTimestamp,
		KeyMaterial:     d.ChainHash,
		Proof:           fmt.Sprintf("drand-%s-round-%d", d.NetworkName, round),
	}, nil
}

// FetchDecryptionKey fetches the signature of the identity's round.
func (d *DrandAuthority) FetchDecryptionKey(ctx context.Context, identity string) (DecryptionKey, error) {
	round, err := d.parseIdentity(identity)
	if err != nil {
		return DecryptionKey{}, err
	}

	var resp drandPublicResponse
	err = d.remote().get(ctx, "drand.public_round", d.BaseURL+"/public/"+strconv.FormatUint(round, 10), &resp)
	if isNotYetAvailable(err) {
		return DecryptionKey{}, ErrNotYetAvailable
	}
	if err != nil {
		return DecryptionKey{}, err
	}
	if resp.Round != round || resp.Signature == "" {
		return DecryptionKey{}, malformed("drand.public_round", "beacon for round %d missing signature", round)
	}

	return DecryptionKey{Identity: identity, Key: resp.Signature}, nil
}

// QueryStatus compares the latest published round against the identity's round.
func (d *DrandAuthority) QueryStatus(ctx context.Context, identity string) (StatusReport, error) {
	round, err := d.parseIdentity(identity)
	if err != nil {
		return StatusReport{}, err
	}

	latest, err := d.fetchLatestRound(ctx)
	if err != nil {
		return StatusReport{}, err
	}

	report := StatusReport{State: StateLocked}
	if latest >= round {
		report.State = StateReady
	}
	if info, err := d.FetchInfo(ctx); err == nil {
		report.UnlockTimestamp = info.GenesisTime + int64(round)*int64(info.Period)
	}
	return report, nil
}

// WrapKey time-locks dek to the round named by the registration's identity.
func (d *DrandAuthority) WrapKey(reg Registration, dek []byte) (string, error) {
	round, err := d.parseIdentity(reg.Identity)
	if err != nil {
		return "", err
	}
	return d.Timelock.Encrypt(dek, round)
}

// UnwrapKey decrypts the tlock-wrapped DEK. tlock fetches the round beacon
// itself; a round that is not out yet yields ErrNotYetAvailable.
func (d *DrandAuthority) UnwrapKey(ctx context.Context, key DecryptionKey, wrapped string) ([]byte, error) {
	dek, err := d.Timelock.Decrypt(wrapped)
	if errors.Is(err, tlock.ErrTooEarly) {
		return nil, ErrNotYetAvailable
	}
	if err != nil {
		return nil, err
	}
	return dek, nil
}

// FetchInfo returns the chain info, fetching it once.
func (d *DrandAuthority) FetchInfo(ctx context.Context) (*DrandInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Return cached info if available
	if d.info != nil {
		return d.info, nil
	}

	var info DrandInfo
	if err := d.remote().get(ctx, "drand.info", d.BaseURL+"/info", &info); err != nil {
		return nil, err
	}

	d.info = &info
	return &info, nil
}

func (d *DrandAuthority) fetchLatestRound(ctx context.Context) (uint64, error) {
	var resp drandPublicResponse
	if err := d.remote().get(ctx, "drand.public_latest", d.BaseURL+"/public/latest", &resp); err != nil {
		return 0, err
	}
	return resp.Round, nil
}

func (d *DrandAuthority) parseIdentity(identity string) (uint64, error) {
	parts := strings.Split(identity, ":")
	if len(parts) != 3 || parts[0] != d.NetworkName {
		return 0, fmt.Errorf("%w: expected %s:<round>:<id>", ErrInvalidIdentity, d.NetworkName)
	}
	round, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || round == 0 {
		return 0, fmt.Errorf("%w: bad round %q", ErrInvalidIdentity, parts[1])
	}
	if _, err := uuid.Parse(parts[2]); err != nil {
		return 0, fmt.Errorf("%w: bad id %q", ErrInvalidIdentity, parts[2])
	}
	return round, nil
}

func (d *DrandAuthority) remote() remote {
	return remote{client: d.HTTPClient, timeout: d.Timeout}
}

// tlockBox is the production TimelockBox. It connects to the relay lazily and
// reuses the connection for later calls.
type tlockBox struct {
	baseURL   string
	chainHash string

	mu      sync.Mutex
	network *thttp.Network
}

func (b *tlockBox) client() (tlock.Tlock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.network == nil {
		network, err := thttp.NewNetwork(b.baseURL, b.chainHash)
		if err != nil {
			return tlock.Tlock{}, fmt.Errorf("failed to connect to drand relay: %w", err)
		}
		b.network = network
	}
	return tlock.New(b.network), nil
}

// Encrypt locks dek to round and returns the ciphertext in base64.
func (b *tlockBox) Encrypt(dek []byte, round uint64) (string, error) {
	tl, err := b.client()
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	if err := tl.Encrypt(&out, bytes.NewReader(dek), round); err != nil {
		return "", fmt.Errorf("failed to lock key to round %d: %w", round, err)
	}
	return base64.StdEncoding.EncodeToString(out.Bytes()), nil
}

// Decrypt opens a ciphertext produced by Encrypt. It fails while the round's
// signature is unpublished.
func (b *tlockBox) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("wrapped key is not base64: %w", err)
	}

	tl, err := b.client()
	if err != nil {
		return nil, err
	}

	var dek bytes.Buffer
	if err := tl.Decrypt(&dek, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return dek.Bytes(), nil
}

// NewDrandAuthorityWithDeps creates a drand authority with injectable dependencies.
// A nil timelock uses tlock against baseURL.
func NewDrandAuthorityWithDeps(baseURL, chainHash string, httpClient HTTPDoer, timelock TimelockBox, timeout time.Duration) *DrandAuthority {
	baseURL = strings.TrimRight(baseURL, "/")
	if chainHash == "" {
		chainHash = drandQuicknetChainHash
	}

	if timelock == nil {
		timelock = &tlockBox{baseURL: baseURL, chainHash: chainHash}
	}

	network := "quicknet"
	if chainHash != drandQuicknetChainHash {
		network = chainHash[:min(8, len(chainHash))]
	}

	return &DrandAuthority{
		NetworkName: network,
		BaseURL:     baseURL + "/" + chainHash,
		ChainHash:   chainHash,
		HTTPClient:  httpClient,
		Timelock:    timelock,
		Timeout:     timeout,
	}
}
