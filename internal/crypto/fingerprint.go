package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"sable/internal/domain"
)

// Fingerprint returns a short hex fingerprint of a public key for
// display and logging.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars).
func Fingerprint(pub domain.X25519Public) string {
	sum := sha256.Sum256(pub.Slice())
	return hex.EncodeToString(sum[:10])
}
