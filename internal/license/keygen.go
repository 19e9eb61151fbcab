package license

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keyLength   = 16
)

// GenerateKey returns a fresh 16-character uppercase alphanumeric key.
func GenerateKey() (string, error) {
	return randomString(keyLength)
}

// randomString draws n characters uniformly from keyAlphabet.
func randomString(n int) (string, error) {
	bound := big.NewInt(int64(len(keyAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, bound)
		if err != nil {
			return "", fmt.Errorf("generate license key: %w", err)
		}
		b[i] = keyAlphabet[idx.Int64()]
	}
	return string(b), nil
}
