// Package token issues and verifies the bearer secrets that authorize
// destructive operations on a collector. A token is generated exactly once
// when a collector is created, handed back to the creator, and never stored
// anywhere except inside the collector's registry entry.
package token

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// Issue generates a fresh opaque token: the base64 encoding of a random
// UUIDv4. Tokens are never re-derivable; losing one means losing the
// ability to delete the collector.
func Issue() string {
	return base64.StdEncoding.EncodeToString([]byte(uuid.NewString()))
}

// Verify reports whether the supplied token matches the expected one.
// Timing side channels are an accepted risk here; possession of the exact
// token string is the only thing being proven.
func Verify(expected, supplied string) bool {
	return expected != "" && expected == supplied
}
