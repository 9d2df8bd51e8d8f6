package password

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// DefaultGenerateLength is used when Generate is called with length 0.
	DefaultGenerateLength = 16

	upperChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars = "abcdefghijklmnopqrstuvwxyz"
	digitChars = "0123456789"

	maxGenerateAttempts = 32
)

// ErrInvalidLength is returned by Generate and GenerateToken for lengths
// outside the accepted range.
var ErrInvalidLength = errors.New("password: invalid length")

var allChars = upperChars + lowerChars + digitChars + Symbols

// Generate returns a random password of the given length that passes
// ValidateStrength. Length 0 selects DefaultGenerateLength.
//
// One character of each class is placed at a random position, the rest are
// drawn from the union of classes. Candidates that would complete a repeated
// or sequential run are redrawn.
func Generate(length int) (string, error) {
	if length == 0 {
		length = DefaultGenerateLength
	}
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("%w: must be between %d and %d", ErrInvalidLength, MinLength, MaxLength)
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		candidate, err := generateOnce(length)
		if err != nil {
			return "", err
		}
		if ok, _ := ValidateStrength(candidate); ok {
			return candidate, nil
		}
	}

	return "", errors.New("password: generator exhausted attempts")
}

func generateOnce(length int) (string, error) {
	pools := make([]string, length)
	for i := range pools {
		pools[i] = allChars
	}
	pools[0], pools[1], pools[2], pools[3] = upperChars, lowerChars, digitChars, Symbols
	if err := shuffle(pools); err != nil {
		return "", err
	}

	out := make([]byte, 0, length)
	for _, pool := range pools {
		for {
			idx, err := randIndex(len(pool))
			if err != nil {
				return "", err
			}
			c := pool[idx]
			if !completesRun(out, c) {
				out = append(out, c)
				break
			}
		}
	}

	return string(out), nil
}

func completesRun(prefix []byte, c byte) bool {
	n := len(prefix)
	if n < 2 {
		return false
	}
	a, b := prefix[n-2], prefix[n-1]
	if a == b && b == c {
		return true
	}
	_, ok := sequentialRuns[strings.ToLower(string([]byte{a, b, c}))]
	return ok
}

// shuffle is a Fisher-Yates shuffle driven by crypto/rand.
func shuffle(s []string) error {
	for i := len(s) - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return err
		}
		s[i], s[j] = s[j], s[i]
	}
	return nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// GenerateToken returns nBytes of crypto/rand output encoded as unpadded
// URL-safe base64, suitable for opaque reset or invite tokens.
func GenerateToken(nBytes int) (string, error) {
	if nBytes < 16 {
		return "", fmt.Errorf("%w: token needs at least 16 bytes", ErrInvalidLength)
	}
	buf := make([]byte, nBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
