package seal

import "time"

const (
	MaxMessageSize = 1024 * 1024 // 1MB

	// DefaultMinLeadTime is the smallest accepted gap between now and the unlock time.
	DefaultMinLeadTime = time.Minute
)

// Outcome is the result of a status or decrypt call.
type Outcome string

const (
	OutcomeLocked Outcome = "locked"
	OutcomeReady  Outcome = "ready"
)

// EncryptResult is returned by Encrypt. The caller must keep Identity and
// EncryptedData; nothing is retained by the engine.
type EncryptResult struct {
	Identity          string `json:"identity"`
	EncryptedData     string `json:"encrypted_data"`
	UnlockTimestamp   int64  `json:"unlock_timestamp"`
	UnlockDate        string `json:"unlock_date"`
	RegistrationProof string `json:"tx_hash,omitempty"`
	Authority         string `json:"authority"`
}

// StatusResult is returned by Status.
type StatusResult struct {
	Identity            string  `json:"identity"`
	State               Outcome `json:"status"`
	DecryptionAvailable bool    `json:"decryption_available"`
	UnlockTimestamp     int64   `json:"unlock_timestamp,omitempty"`
	NextStep            string  `json:"next_step"`
}

// DecryptResult is returned by Decrypt. Message is set only when Outcome is
// OutcomeReady; the remaining fields only when it is OutcomeLocked.
// Remaining saturates at the largest time.Duration; RemainingSeconds is exact.
type DecryptResult struct {
	Identity         string        `json:"identity"`
	Outcome          Outcome       `json:"status"`
	Message          string        `json:"decrypted_message,omitempty"`
	UnlockTimestamp  int64         `json:"unlock_timestamp"`
	Remaining        time.Duration `json:"-"`
	RemainingSeconds int64         `json:"-"`
}
