package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for fingerprint hashing. The version suffix allows the
// row encoding to change without old hashes colliding with new ones.
const (
	DomainTableRows = "semstore/proptable/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TableHash fingerprints the rows one subject holds in one property table.
// rows are canonical row encodings; order does not matter.
func TableHash(rows []string) string {
	sorted := make([]string, len(rows))
	copy(sorted, rows)
	SortCanonical(sorted)

	var data []byte
	for i, r := range sorted {
		if i > 0 {
			data = append(data, 0x00)
		}
		data = append(data, r...)
	}
	return hashWithDomain(DomainTableRows, data)
}
