package ids

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomToken returns 2*nBytes hex characters from crypto/rand. Used for
// connection identifiers and as the fallback envelope ID when ULID
// generation fails. nBytes below 1 uses 16. An exhausted entropy source
// yields the empty string; callers treat that as an error-like value.
func RandomToken(nBytes int) string {
	if nBytes < 1 {
		nBytes = 16
	}

	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}
