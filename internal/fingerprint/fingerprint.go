// Package fingerprint derives compact dedup keys from canonical article URLs.
//
// Tokens are the first 12 hex characters (48 bits) of the SHA-256 digest of the URL.
// Collisions are possible but negligible at the volumes handled here; a collision
// makes the later article look already seen.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Length is the number of hex characters kept from the digest.
const Length = 12

// Of returns the fingerprint of url. Callers must reject empty URLs beforehand;
// an empty url yields an empty token.
func Of(url string) string {
	if url == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:Length]
}
