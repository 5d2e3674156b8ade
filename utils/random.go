package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomAlphanumeric returns n characters drawn uniformly from [A-Za-z0-9].
func RandomAlphanumeric(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid length %d", n)
	}
	max := big.NewInt(int64(len(alphanumeric)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random index: %w", err)
		}
		buf[i] = alphanumeric[idx.Int64()]
	}
	return string(buf), nil
}
