/*
Package randx generates cryptographically secure identifiers.

It produces Base62 application numbers for admission forms, portal session ids and
media object keys.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars is the Base62 alphabet (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the size of the Base62 alphabet.
	Base62Len = int64(len(Base62Chars))

	// ApplicationPrefix starts every admission application number.
	ApplicationPrefix = "SIMS"

	// ApplicationCodeLength is the length of the random part of an application number.
	ApplicationCodeLength = 6
)

// Base62 returns n random Base62 characters drawn from crypto/rand.
func Base62(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// ApplicationNumber returns an admission reference like "SIMS-2026-a8Zk3Q".
func ApplicationNumber(year int) (string, error) {
	code, err := Base62(ApplicationCodeLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%s", ApplicationPrefix, year, code), nil
}

// IsValidApplicationNumber checks the "SIMS-<year>-<code>" shape.
func IsValidApplicationNumber(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] != ApplicationPrefix || len(parts[1]) != 4 {
		return false
	}
	for _, c := range parts[1] {
		if c < '0' || c > '9' {
			return false
		}
	}
	if len(parts[2]) != ApplicationCodeLength {
		return false
	}
	for _, c := range parts[2] {
		if !strings.ContainsRune(Base62Chars, c) {
			return false
		}
	}
	return true
}

// PortalID returns a new portal session identifier.
func PortalID() string {
	return uuid.NewString()
}

// IsValidPortalID reports whether s parses as a UUID.
func IsValidPortalID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ObjectKey builds a unique storage key under prefix keeping the lower-cased extension.
func ObjectKey(prefix, ext string) string {
	return fmt.Sprintf("%s/%s%s", strings.Trim(prefix, "/"), uuid.NewString(), strings.ToLower(ext))
}
