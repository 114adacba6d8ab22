package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashUserKey folds a user identity into a fixed, filesystem-safe
// segment for object keys. Guest IDs contain a colon, which S3 and
// local paths both tolerate badly.
func HashUserKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
