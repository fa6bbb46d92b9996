// Package checksum computes the dual-digest fingerprint recorded for every
// positioned artifact. Windows RELEASES indexes consume the SHA-1; everything
// else verifies against the SHA-256.
package checksum

import (
	"crypto/sha1" //nolint:gosec // SHA-1 is part of the Squirrel RELEASES wire format.
	"crypto/sha256"
	"encoding/hex"
)

// Digests holds both fingerprint encodings of an artifact, lowercase hex.
type Digests struct {
	// SHA1 is the lowercase hex SHA-1 digest.
	SHA1 string
	// SHA256 is the lowercase hex SHA-256 digest.
	SHA256 string
}

// Compute returns both digests of the provided bytes.
func Compute(data []byte) Digests {
	sum1 := sha1.Sum(data) //nolint:gosec // See package comment.
	sum256 := sha256.Sum256(data)

	return Digests{
		SHA1:   hex.EncodeToString(sum1[:]),
		SHA256: hex.EncodeToString(sum256[:]),
	}
}
