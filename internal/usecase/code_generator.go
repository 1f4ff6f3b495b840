package usecase

import (
	"crypto/rand"
	"io"
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	// codeAlphabet avoids characters that are easy to confuse (O/0, I/1).
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 12
)

// generateRedeemCode returns a random uppercase alphanumeric token.
func generateRedeemCode() (string, error) {
	buffer := make([]byte, codeLength)
	if _, err := io.ReadFull(rand.Reader, buffer); err != nil {
		return "", err
	}
	for i := range buffer {
		buffer[i] = codeAlphabet[int(buffer[i])%len(codeAlphabet)]
	}
	return string(buffer), nil
}

// NormalizeCode is the canonical form used for lookups.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func newTemplateID() string {
	return strings.ToLower(ulid.Make().String())
}
