package domain

import (
	"crypto/rand"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// NewID returns a prefixed ULID, e.g. "TXN-01J8ZQ...". The prefix is for
// human legibility only; uniqueness comes from the ULID.
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, ulid.MustNew(ulid.Now(), rand.Reader).String())
}

const (
	PrefixWallet       = "WLT"
	PrefixTransaction  = "TXN"
	PrefixEscrow       = "ESC"
	PrefixDispute      = "DSP"
	PrefixCondition    = "CND"
	PrefixSubscription = "WHS"
	PrefixWebhookJob   = "WHJ"
)
