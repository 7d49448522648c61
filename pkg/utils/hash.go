package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// HashString returns the md5 hex digest of input, used for cache keys.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// NormalizeName lowercases and collapses whitespace for name-keyed lookups.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
