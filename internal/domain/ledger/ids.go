package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// DeriveID hashes a domain tag plus an ordered component tuple into a stable
// identifier. No clock, no randomness, no environment input: identical tuples
// derive identical ids in any process at any time. Components are
// length-prefixed so ("ab","c") and ("a","bc") never collide, and the domain
// tag keeps ids of different entity kinds disjoint even for equal tuples.
func DeriveID(domainTag string, components ...string) string {
	h := sha256.New()
	writeFrame(h, domainTag)
	for _, c := range components {
		writeFrame(h, c)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeFrame(h interface{ Write(p []byte) (int, error) }, s string) {
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(s)))
	_, _ = h.Write(size[:])
	_, _ = h.Write([]byte(s))
}

// EvidenceID derives the id for an evidence record from its stable key tuple.
func EvidenceID(datasetVersionID, engineID, kind, stableKey string) string {
	return DeriveID("evidence", datasetVersionID, engineID, kind, stableKey)
}

// FindingID derives the id for a finding record from its stable key tuple.
func FindingID(datasetVersionID, engineID, kind, stableKey string) string {
	return DeriveID("finding", datasetVersionID, engineID, kind, stableKey)
}

// LinkID derives the id for a finding-evidence link from its referents.
func LinkID(findingID, evidenceID string) string {
	return DeriveID("link", findingID, evidenceID)
}
