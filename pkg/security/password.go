package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// MinThrowawayPasswordLength keeps generated passwords above provider policy minimums.
const MinThrowawayPasswordLength = 16

const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*-_=+"
)

// GenerateTempPassword produces a random password that is never shown to
// anyone; account owners set their own through the password-setup link. Every
// character class appears at least once.
func GenerateTempPassword(length int) (string, error) {
	if length < MinThrowawayPasswordLength {
		return "", fmt.Errorf("length must be at least %d", MinThrowawayPasswordLength)
	}

	classes := []string{lowerChars, upperChars, digitChars, symbolChars}
	all := strings.Join(classes, "")

	out := make([]byte, 0, length)
	for _, class := range classes {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < length {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	for i := len(out) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}
	return string(out), nil
}

// HashIdentifier returns a stable hex digest for values that must not appear
// in cache or rate-limit keys verbatim, such as email addresses.
func HashIdentifier(value string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(sum[:])
}

func pick(charset string) (byte, error) {
	idx, err := randInt(len(charset))
	if err != nil {
		return 0, err
	}
	return charset[idx], nil
}

func randInt(max int) (int, error) {
	if max <= 0 {
		return 0, fmt.Errorf("invalid max %d", max)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
