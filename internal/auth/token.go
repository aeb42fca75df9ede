package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Token lengths for the verification token families.
const (
	EmailTokenLength = 64
	ResetTokenLength = 32
	OTPLength        = 6
)

// GenerateToken generates a cryptographically random alphanumeric token of
// the given length.
func GenerateToken(length int) (string, error) {
	return randomString(tokenAlphabet, length)
}

// GenerateOTP generates a random numeric one-time code of the given length.
func GenerateOTP(length int) (string, error) {
	return randomString("0123456789", length)
}

func randomString(alphabet string, length int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate random token: %w", err)
		}
		b[i] = alphabet[n.Int64()]
	}
	return string(b), nil
}

// HashToken returns the SHA-256 hex digest of a raw token. Tokens are stored
// hashed so a database leak does not expose redeemable values.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomBytes(b []byte) (int, error) {
	return rand.Read(b)
}

func constantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
