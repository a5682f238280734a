package testutil

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// FakeHTTPDoer is a mock HTTP client for testing.
type FakeHTTPDoer struct {
	// Responses maps URL path suffixes to responses
	Responses map[string]*http.Response
	// Errors maps URL path suffixes to errors
	Errors map[string]error

	mu       sync.Mutex
	requests []*http.Request
}

func (f *FakeHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	path := req.URL.Path
	// Check for path suffix matches
	for suffix, err := range f.Errors {
		if strings.HasSuffix(path, suffix) {
			return nil, err
		}
	}
	for suffix, resp := range f.Responses {
		if strings.HasSuffix(path, suffix) {
			// Clone the response body for reuse
			return CloneResponse(resp), nil
		}
	}
	// Return 404 for unknown paths
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

// Requests returns the requests seen so far.
func (f *FakeHTTPDoer) Requests() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.requests...)
}

// CloneResponse creates a copy of an http.Response with a fresh body reader.
// The original body is read once and reset so the response can be served again.
func CloneResponse(resp *http.Response) *http.Response {
	bodyBytes, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	return &http.Response{
		StatusCode: resp.StatusCode,
		Body:       io.NopCloser(bytes.NewReader(bodyBytes)),
	}
}

// JSONResponse creates a response with v marshaled as its body.
func JSONResponse(status int, v any) *http.Response {
	body, _ := json.Marshal(v)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

// TextResponse creates a response with a raw body.
func TextResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// Shutter fixtures.
const (
	ShutterIdentity = "0x8c232eae4f957259e9d6b68301d529e9851b8642874c8f59d2bd0fb84a570c75"
	ShutterEonKey   = "0x57af5437a84e1b4cbb0c7e1dc0e0b77ad2b8b6dd21a8fb2b1b8c2e8e3b0a5d3c"
	ShutterTxHash   = "0x3026ad202ca611551377eef069fb6ed894eae65329ce73c56f300129694f12ba"
	ShutterKey      = "0x99a805fc26812c13041126b25e91eccf3203a85ef1f6a6a6b6b66a8b2aa9bd79"
)

// MakeShutterRegisterResponse creates a fake /register_identity response.
func MakeShutterRegisterResponse(identity, txHash string) *http.Response {
	return JSONResponse(http.StatusOK, map[string]any{
		"message": map[string]any{
			"eon":             1,
			"eon_key":         ShutterEonKey,
			"identity":        identity,
			"identity_prefix": "0x79bc8f6b4fcb02c651d6a702b7ad965c7fca19e94a9646d21ae90c8b54c030a0",
			"tx_hash":         txHash,
		},
	})
}

// MakeShutterEncryptionDataResponse creates a fake /get_data_for_encryption response.
func MakeShutterEncryptionDataResponse(eonKey string) *http.Response {
	return JSONResponse(http.StatusOK, map[string]any{
		"message": map[string]any{
			"eon":             1,
			"eon_key":         eonKey,
			"identity":        ShutterIdentity,
			"identity_prefix": "0x79bc8f6b4fcb02c651d6a702b7ad965c7fca19e94a9646d21ae90c8b54c030a0",
			"epoch_id":        "0x88f2495d1240f9c5523db589996a50a4984ee7a08a8a8f4b269e4345b383310abd2dc1cd9c9c2b8718ed3f486d5242f5",
		},
	})
}

// MakeShutterDecryptionKeyResponse creates a fake /get_decryption_key response.
func MakeShutterDecryptionKeyResponse(identity, key string, decryptionTimestamp int64) *http.Response {
	return JSONResponse(http.StatusOK, map[string]any{
		"message": map[string]any{
			"decryption_key":       key,
			"identity":             identity,
			"decryption_timestamp": decryptionTimestamp,
		},
	})
}

// MakeDrandInfoResponse creates a fake drand /info response.
func MakeDrandInfoResponse() *http.Response {
	return JSONResponse(http.StatusOK, map[string]any{
		"period":       3,
		"genesis_time": 1677685200, // Fixed genesis time for deterministic tests
		"hash":         "52db9ba70e0cc0f6eaf7803dd07447a1f5477735fd3f661792ba94600c84e971",
		"schemeID":     "bls-unchained-on-g1",
		"beaconID":     "quicknet",
	})
}

// MakeDrandPublicResponse creates a fake drand /public/latest or /public/<round> response.
func MakeDrandPublicResponse(round uint64) *http.Response {
	return JSONResponse(http.StatusOK, map[string]any{
		"round":      round,
		"randomness": "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2",
		"signature":  "b44679b9a59af2ec876b1a6b1ad52ea9b1615fc3982b19576350f93447cb1125e342b73a8dd2bacbe47e4b6b63ed5e39",
	})
}

// FormatRoundURL converts a round number to a URL path component.
func FormatRoundURL(round uint64) string {
	return "/public/" + strconv.FormatUint(round, 10)
}

// FakeTimelockBox is a mock tlock implementation for testing.
// It uses a simple reversible encoding (base64 with prefix) instead of actual encryption.
type FakeTimelockBox struct {
	// EncryptError can be set to simulate encryption failures
	EncryptError error
	// DecryptError can be set to simulate decryption failures
	DecryptError error
	// LastRound records the round passed to the most recent Encrypt call
	LastRound uint64
}

func (f *FakeTimelockBox) Encrypt(dek []byte, targetRound uint64) (string, error) {
	if f.EncryptError != nil {
		return "", f.EncryptError
	}
	f.LastRound = targetRound
	return "FAKE_TLOCK:" + base64.StdEncoding.EncodeToString(dek), nil
}

func (f *FakeTimelockBox) Decrypt(ciphertextB64 string) ([]byte, error) {
	if f.DecryptError != nil {
		return nil, f.DecryptError
	}
	if strings.HasPrefix(ciphertextB64, "FAKE_TLOCK:") {
		return base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertextB64, "FAKE_TLOCK:"))
	}
	return nil, io.ErrUnexpectedEOF
}
