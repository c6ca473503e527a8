package engine

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashCredential returns the lowercase hex SHA-256 digest stored in place
// of the raw credential.
func HashCredential(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
