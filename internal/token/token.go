// Package token implements the bearer-token codec: canonical normalization,
// one-way digests for storage and comparison, and high-entropy issuance.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Role-distinguishing token prefixes. They exist so an operator can tell at
// a glance what kind of token they are holding; they carry no authorization
// weight whatsoever.
const (
	PrefixMaster   = "mk-"
	PrefixAdmin    = "ak-"
	PrefixProducer = "pk-"
)

// rawBytes is the entropy of an issued token body (256 bits).
const rawBytes = 32

// Normalize strips whitespace and hyphens from a presented token so cosmetic
// formatting never causes a false rejection. It is applied both when hashing
// a newly issued token and when verifying a presented one.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch r {
		case ' ', '\t', '\n', '\r', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Digest returns the SHA-256 hex digest of the normalized token. Equality of
// digests is the sole authentication check; the raw token is never persisted.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(Normalize(raw)))
	return hex.EncodeToString(sum[:])
}

// Issue generates a new raw token with the given prefix from a
// cryptographically secure source. The raw value is shown to the caller
// exactly once; only its digest is ever stored.
func Issue(prefix string) (string, error) {
	buf := make([]byte, rawBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(buf), nil
}
