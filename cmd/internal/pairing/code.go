package pairing

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet excludes visually confusable characters (I, O, 0, 1) so
// codes survive being read aloud or typed from a headset prompt.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed pairing-code length.
const CodeLength = 6

// NewPairCode returns a random human-enterable pairing code.
//
// Generation does not check the code against currently live sessions; with
// a 32^6 (~1.07B) space the collision risk is accepted pending product
// intent on enforcement. The 32-char alphabet also keeps the modulo
// mapping below bias-free.
func NewPairCode() (string, error) {
	b := make([]byte, CodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("pairing: rand: %w", err)
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}
