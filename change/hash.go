// Package change implements the spec's Change type: a signed, hash-identified
// batch of operations with explicit dependency hashes, plus its canonical
// bit-exact columnar byte encoding (spec §3, §6). The single-change codec
// lives here rather than in package columnar because the change's identity
// (its Hash) is defined as the digest of that exact encoding, and keeping
// the two in one package avoids a hash ⇄ encoding import cycle; package
// columnar builds the whole-document format on top of this package's
// EncodeChunk/DecodeChunk.
package change

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
)

// Hash identifies a Change by the SHA-256 digest of its canonical encoding.
// Rendered as 64 lowercase hex digits per spec §6.
type Hash [32]byte

// HashOf returns the SHA-256 digest of data as a Hash.
func HashOf(data []byte) Hash { return sha256.Sum256(data) }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether h is the zero Hash, used as a "no hash" sentinel
// (never a valid change hash since SHA-256 never returns all zero bytes in
// practice, but treated as a sentinel rather than relied upon for security).
func (h Hash) IsZero() bool { return h == Hash{} }

// Less gives the byte-lexicographic order deps must be sorted into before
// hashing, and the tie-break order for concurrent changes in the DAG's
// debug linearisation (spec §4.2).
func (h Hash) Less(other Hash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// ParseHash parses a 64-hex-digit rendering back into a Hash.
func ParseHash(s string) (Hash, error) {
	if len(s) != 64 {
		return Hash{}, errors.New("change: hash string must be 64 hex digits")
	}
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	copy(h[:], b)
	return h, nil
}

// SortHashes sorts hs in place in ascending byte-lexicographic order.
func SortHashes(hs []Hash) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].Less(hs[j]) })
}
