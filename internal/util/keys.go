package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// HashKey returns prefix + ":" + the first 16 hex chars of sha256 over parts.
// Parts are length-prefixed so ("ab","c") and ("a","bc") never collide.
func HashKey(prefix string, parts ...string) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(strconv.Itoa(len(p)))
		sb.WriteByte(':')
		sb.WriteString(p)
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return prefix + ":" + hex.EncodeToString(sum[:8])
}
