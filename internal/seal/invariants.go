package seal

import (
	"errors"
	"fmt"
)

// Envelope invariants:
//
// An envelope is well formed when:
//     v == envelopeVersion
//     authority, identity, wrapped_key, nonce and ciphertext are non-empty
//     unlock_timestamp > 0
//
// An envelope is bound to a decrypt request when:
//     envelope.identity == requested identity (byte for byte)
//     envelope.authority == engine authority name
//
// Binding is checked before any network call. A request that fails it can
// never succeed, whatever the authority says.

// validate checks that a decoded envelope is well formed.
// It never repairs fields.
func (e envelope) validate() error {
	if e.Version != envelopeVersion {
		return fmt.Errorf("unsupported envelope version %d", e.Version)
	}

	switch {
	case e.Authority == "":
		return errors.New("envelope has no authority")
	case e.Identity == "":
		return errors.New("envelope has no identity")
	case e.UnlockTimestamp <= 0:
		return errors.New("envelope has no unlock timestamp")
	case e.WrappedKey == "":
		return errors.New("envelope has no wrapped key")
	case e.Nonce == "":
		return errors.New("envelope has no nonce")
	case e.Ciphertext == "":
		return errors.New("envelope has no ciphertext")
	}
	return nil
}

// checkBinding verifies env belongs to identity under authority.
func checkBinding(env envelope, identity, authority string) error {
	if env.Identity != identity {
		return &IntegrityError{
			Identity: identity,
			Reason:   "encrypted data was produced for a different identity",
		}
	}
	if env.Authority != authority {
		return &IntegrityError{
			Identity: identity,
			Reason:   fmt.Sprintf("encrypted data was sealed by authority %q, not %q", env.Authority, authority),
		}
	}
	return nil
}
