package seal

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
)

// EnvelopePrefix marks encrypted_data produced by this engine.
const EnvelopePrefix = "TIMELOCK_ENCRYPTED:"

const envelopeVersion = 1

// envelope is the decoded form of encrypted_data.
//
// Wire format: EnvelopePrefix followed by standard base64 of the JSON object.
// The header fields (v, authority, identity, unlock_timestamp) are
// authenticated as GCM additional data in their JCS canonical form, so any
// edit to them breaks decryption.
type envelope struct {
	Version         int    `json:"v"`
	Authority       string `json:"authority"`
	Identity        string `json:"identity"`
	UnlockTimestamp int64  `json:"unlock_timestamp"`
	WrappedKey      string `json:"wrapped_key"`
	Nonce           string `json:"nonce"`
	Ciphertext      string `json:"ciphertext"`
}

type envelopeHeader struct {
	Version         int    `json:"v"`
	Authority       string `json:"authority"`
	Identity        string `json:"identity"`
	UnlockTimestamp int64  `json:"unlock_timestamp"`
}

// header returns the canonical additional data for the envelope.
func (e envelope) header() ([]byte, error) {
	raw, err := json.Marshal(envelopeHeader{
		Version:         e.Version,
		Authority:       e.Authority,
		Identity:        e.Identity,
		UnlockTimestamp: e.UnlockTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot marshal envelope header: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("cannot canonicalize envelope header: %w", err)
	}
	return canonical, nil
}

func (e envelope) encode() (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("cannot marshal envelope: %w", err)
	}
	return EnvelopePrefix + base64.StdEncoding.EncodeToString(raw), nil
}

// decodeEnvelope parses encrypted_data. Unknown fields and missing required
// fields are rejected.
func decodeEnvelope(s string) (envelope, error) {
	encoded, ok := strings.CutPrefix(strings.TrimSpace(s), EnvelopePrefix)
	if !ok {
		return envelope{}, fmt.Errorf("missing %q prefix", EnvelopePrefix)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return envelope{}, fmt.Errorf("invalid base64: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("invalid envelope JSON: %w", err)
	}
	if dec.More() {
		return envelope{}, errors.New("trailing data after envelope")
	}

	if err := env.validate(); err != nil {
		return envelope{}, err
	}
	return env, nil
}

func (e envelope) ciphertext() ([]byte, error) {
	ct, err := base64.StdEncoding.DecodeString(e.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext encoding: %w", err)
	}
	return ct, nil
}
