// Package paircode generates human-typeable pairing codes.
package paircode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// alphabet excludes 0/O, 1/I/L so codes survive being read over the phone.
const alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const groupLen = 4

// New returns a code of two 4-character groups, e.g. "8K7Q-2M9D".
func New() (string, error) {
	buf := make([]byte, groupLen*2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	out := make([]byte, 0, groupLen*2+1)
	for i, b := range buf {
		if i == groupLen {
			out = append(out, '-')
		}
		out = append(out, alphabet[int(b)%len(alphabet)])
	}
	return string(out), nil
}

// Normalize uppercases and trims a user-typed code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code has the XXXX-XXXX shape over the code alphabet.
func Valid(code string) bool {
	if len(code) != groupLen*2+1 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if i == groupLen {
			if code[i] != '-' {
				return false
			}
			continue
		}
		if !strings.ContainsRune(alphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
