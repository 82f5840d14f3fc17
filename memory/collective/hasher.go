package collective

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashContent fingerprints fact content for deduplication. Normalization is
// lowercase plus whitespace trim, so "  PT PMA TAKES 60 DAYS " and
// "pt pma takes 60 days" collapse to one fact.
func HashContent(content string) string {
	normalized := strings.ToLower(strings.TrimSpace(content))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
