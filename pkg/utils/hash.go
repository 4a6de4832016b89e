package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// HashString returns a stable hex digest, used for cache keys.
func HashString(input string) string {
	hash := md5.Sum([]byte(strings.TrimSpace(input)))
	return fmt.Sprintf("%x", hash)
}

// Truncate cuts s to at most limit bytes without splitting the cut mid-rune.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := s[:limit]
	for len(cut) > 0 && !isRuneStart(s[len(cut)]) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
