// Package dedup computes stable content fingerprints for articles.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns a deterministic digest over the normalized (title, url)
// pair. Normalization only trims surrounding whitespace; case is preserved,
// since distinct articles can legitimately differ only by title case and must
// not collapse to the same hash.
func Fingerprint(title, url string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(title) + "::" + strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:])
}
