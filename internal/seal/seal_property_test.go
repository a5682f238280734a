package seal

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: decrypt(encrypt(m)) == m once the authority releases the key.
func TestRoundTripLaw(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("released messages decrypt byte-identical", prop.ForAll(
		func(message string, minutes int) bool {
			engine, _, clock := newTestEngine(t)
			ctx := context.Background()

			enc, err := engine.Encrypt(ctx, message, "in 1 minute", referenceTime)
			if err != nil {
				return false
			}

			clock.Advance(time.Duration(minutes) * time.Minute)
			res, err := engine.Decrypt(ctx, enc.Identity, enc.EncryptedData)
			return err == nil && res.Outcome == OutcomeReady && res.Message == message
		},
		gen.AnyString().SuchThat(func(s string) bool { return s != "" }),
		gen.IntRange(1, 600),
	))

	properties.Property("unreleased messages stay locked", prop.ForAll(
		func(seconds int64) bool {
			engine, _, _ := newTestEngine(t)
			ctx := context.Background()

			expr := time.Unix(referenceTime.Unix()+seconds, 0).UTC().Format(time.RFC3339)
			enc, err := engine.Encrypt(ctx, "secret", expr, referenceTime)
			if err != nil {
				return false
			}

			res, err := engine.Decrypt(ctx, enc.Identity, enc.EncryptedData)
			return err == nil &&
				res.Outcome == OutcomeLocked &&
				res.Message == "" &&
				res.Remaining == time.Duration(seconds)*time.Second
		},
		gen.Int64Range(60, 10*365*24*3600),
	))

	properties.TestingRun(t)
}
