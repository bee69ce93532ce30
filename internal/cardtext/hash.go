package cardtext

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize cleans a card's sides for duplicate detection: trimmed,
// lowercased, line endings unified, joined with a newline so the two
// fields can never run together.
func Normalize(front, back string) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}
	return normalizePart(front) + "\n" + normalizePart(back)
}

// Hash returns the SHA-256 of the normalized card content as a hex
// string. Content-identical cards hash identically regardless of
// whitespace or case.
func Hash(front, back string) string {
	sum := sha256.Sum256([]byte(Normalize(front, back)))
	return fmt.Sprintf("%x", sum)
}
