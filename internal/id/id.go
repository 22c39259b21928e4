// Package id provides unique identifier generation utilities.
// This is the canonical source for ID generation across the codebase.
package id

import (
	"crypto/md5" //nolint:gosec // not used for security, only to spread random bits
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// UidLength is the length of a public collector uid.
const UidLength = 8

// Uid generates a short public collector id: the last 8 hex digits of an
// MD5 digest over a random seed, uppercased. The result is unguessable but
// not guaranteed unique; callers must collision-check against live ids.
func Uid() string {
	seed := make([]byte, 16)
	_, _ = rand.Read(seed)
	sum := md5.Sum(seed) //nolint:gosec
	h := hex.EncodeToString(sum[:])
	return strings.ToUpper(h[len(h)-UidLength:])
}

// Short generates a short random hex ID (16 characters).
// Suitable for internal IDs where brevity matters, such as connection ids.
func Short() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// IsValidUid reports whether s has the shape of a collector uid:
// exactly 8 uppercase hex characters.
func IsValidUid(s string) bool {
	if len(s) != UidLength {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
