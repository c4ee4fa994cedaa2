package appointment

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Reference IDs are shared with patients over the phone and in email, so the
// alphabet drops the characters that read ambiguously: 0/O, 1/I/L.
const (
	refIDPrefix   = "TFW-"
	refIDAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	refIDRandLen  = 8

	// MaxReferenceIDAttempts bounds collision retries at creation. The ID
	// space is ~31^8, so exhaustion signals something badly wrong.
	MaxReferenceIDAttempts = 10
)

// NewReferenceID returns a fresh candidate reference ID, e.g. TFW-A3B7K9M2.
// Uniqueness is the caller's job, checked against the store.
func NewReferenceID() (string, error) {
	buf := make([]byte, refIDRandLen)
	max := big.NewInt(int64(len(refIDAlphabet)))

	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate reference id: %w", err)
		}
		buf[i] = refIDAlphabet[n.Int64()]
	}

	return refIDPrefix + string(buf), nil
}
