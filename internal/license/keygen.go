package license

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// keyAlphabet is the character set mask wildcards draw from
const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// unbiasedLimit is the largest multiple of len(keyAlphabet) that fits
// in a byte; values at or above it are redrawn so every alphabet
// character is equally likely.
const unbiasedLimit = 256 - 256%len(keyAlphabet)

// randomAlphabet returns n uniformly distributed alphabet characters.
func randomAlphabet(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, v := range buf {
			if int(v) >= unbiasedLimit {
				continue
			}
			out = append(out, keyAlphabet[int(v)%len(keyAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return out, nil
}

// GenerateKey renders a mask into a key: every '*' becomes a random
// character from the alphabet, everything else is kept verbatim.
func GenerateKey(mask string) (string, error) {
	wildcards := strings.Count(mask, "*")
	if wildcards == 0 {
		return mask, nil
	}

	chars, err := randomAlphabet(wildcards)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(mask))
	i := 0
	for _, c := range mask {
		if c == '*' {
			b.WriteByte(chars[i])
			i++
			continue
		}
		b.WriteRune(c)
	}
	return b.String(), nil
}
