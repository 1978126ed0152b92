package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashValue returns the lowercase hex SHA-256 digest of v.
func HashValue(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// HashRecord replaces every non-empty field of n with its digest. Empty
// fields stay empty. Records that did not come out of Normalizer.Normalize
// are rejected with ErrNotNormalized.
func HashRecord(n NormalizedRecord) (HashedRecord, error) {
	if !n.Normalized() {
		return HashedRecord{}, ErrNotNormalized
	}
	h := HashedRecord{deviceID: n.deviceID}
	for i, v := range n.values {
		if v != "" {
			h.values[i] = HashValue(v)
		}
	}
	return h, nil
}

// hashedCount returns the number of digests in h.
func (h HashedRecord) hashedCount() int {
	count := 0
	for _, v := range h.values {
		if v != "" {
			count++
		}
	}
	return count
}
