// Package cache implements the short-lived, obfuscated key-value layer that
// reuses the target/category partitioning idea for ephemeral data such as
// login sessions. Payloads are stored encoded, and validity is decided by
// an independently encoded expiry, not by the plaintext expiry field a
// tampering client could edit.
package cache

import (
	"encoding/hex"
	"math/rand"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// decorSuffixes are decorative tokens appended after encoding. They carry
// no information; they only vary the stored shape of otherwise-identical
// payloads. Decoding strips them by set membership, not position, so the
// set can grow without breaking old rows.
var decorSuffixes = []string{"~qx4", "~zp9", "~mk2", "~vd7", "~hs5"}

// Encode serializes a value to its canonical binary form, hex-encodes it,
// and appends one randomly chosen decorative suffix.
func Encode(data any) (string, error) {
	raw, err := msgpack.Marshal(data)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw) + pickSuffix(), nil
}

// Decode reverses Encode into out. Any failure at any stage reports a miss
// instead of an error: a corrupt cache row is treated as absent.
func Decode(encoded string, out any) bool {
	stripped := stripSuffixes(encoded)
	raw, err := hex.DecodeString(stripped)
	if err != nil {
		return false
	}
	if err := msgpack.Unmarshal(raw, out); err != nil {
		return false
	}
	return true
}

// EncodeExpiry independently encodes an expiry instant. This encoded form,
// not the plaintext field stored next to it, is what read-side validity
// checks trust.
func EncodeExpiry(expireAt time.Time) (string, error) {
	return Encode(expireAt.UTC().Format(time.RFC3339))
}

// IsExpiryValid decodes an encoded expiry and reports whether it is still
// strictly in the future. Undecodable expiries are invalid.
func IsExpiryValid(encodedExpiry string, now time.Time) bool {
	var stamp string
	if !Decode(encodedExpiry, &stamp) {
		return false
	}
	expireAt, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return false
	}
	return expireAt.After(now)
}

func pickSuffix() string {
	shuffled := make([]string, len(decorSuffixes))
	copy(shuffled, decorSuffixes)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[0]
}

func stripSuffixes(encoded string) string {
	for {
		trimmed := encoded
		for _, suffix := range decorSuffixes {
			trimmed = strings.TrimSuffix(trimmed, suffix)
		}
		if trimmed == encoded {
			return trimmed
		}
		encoded = trimmed
	}
}
