package tools

type explainPayload struct {
	WhatIsTimelockEncryption []string `json:"what_is_timelock_encryption"`
	HowItWorks               []string `json:"how_it_works"`
	UseCases                 []string `json:"use_cases"`
	HowToUse                 []string `json:"how_to_use"`
	ExampleUsage             []string `json:"example_usage"`
	Limitations              []string `json:"limitations"`
}

var explanation = explainPayload{
	WhatIsTimelockEncryption: []string{
		"Timelock encryption lets you encrypt a message that can only be decrypted after a specific time",
		"The message is cryptographically locked until the unlock timestamp",
		"Holding the encrypted data is not enough to read it before the unlock time",
	},
	HowItWorks: []string{
		"The message is encrypted locally with a fresh AES-256-GCM key",
		"That key is locked to an identity registered with an external key authority for the unlock time",
		"Shutter Network keypers use threshold cryptography and release the identity's key only after the unlock time",
		"The drand randomness beacon can be used instead: the key is locked to the beacon round for the unlock time",
		"The authority decides when a key is released; this server never applies its own clock gate",
	},
	UseCases: []string{
		"Time-delayed messages and announcements",
		"Sealed bid auctions",
		"Scheduled reveals for games or contests",
		"Future-dated communications",
		"Dead man's switch scenarios",
	},
	HowToUse: []string{
		"1. Use 'timelock_encrypt' with your message and unlock time",
		"2. Save the returned identity and encrypted_data",
		"3. Use 'check_decryption_status' to see if the unlock time has passed",
		"4. Use 'decrypt_timelock_message' with both values to decrypt when ready",
	},
	ExampleUsage: []string{
		"timelock_encrypt('Happy New Year!', '2027-01-01')",
		"timelock_encrypt('Secret birthday message', '3 months from now')",
		"timelock_encrypt('Auction results', '1782360000')",
	},
	Limitations: []string{
		"Months are 30 days and years are 365 days when using relative times",
		"The unlock time must be at least one minute in the future",
		"The server stores nothing: keep identity and encrypted_data safe",
	},
}
