package syncproto

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/HerbCaudill/automerge/change"
	"github.com/HerbCaudill/automerge/internal/leb128"
	"github.com/HerbCaudill/automerge/internal/verr"

	"github.com/bits-and-blooms/bitset"
)

// numLanes is the fixed k = 7 hash-function count spec §4.3/§6 mandates.
const numLanes = 7

// Bloom is a fixed-k Bloom filter over change hashes, sized for a target
// false-positive rate at construction time (spec §4.3). The k=7 lanes are
// derived by splitting one SHA-256 digest of the member hash into seven
// 32-bit lanes modulo the filter's bit-size, rather than using k
// independent hash functions, exactly as §6 specifies; the bit vector
// itself is a github.com/bits-and-blooms/bitset, the dependency the pack
// carries for this purpose.
type Bloom struct {
	bits *bitset.BitSet
	n    uint
}

// DefaultFPR is the ~1% target false-positive rate spec §4.3 names.
const DefaultFPR = 0.01

// NewBloom sizes a filter for expectedEntries members at the given target
// false-positive rate.
func NewBloom(expectedEntries int, fpr float64) *Bloom {
	if expectedEntries < 1 {
		expectedEntries = 1
	}
	if fpr <= 0 || fpr >= 1 {
		fpr = DefaultFPR
	}
	m := math.Ceil(-1 * float64(expectedEntries) * math.Log(fpr) / (math.Ln2 * math.Ln2))
	n := uint(m)
	if n == 0 {
		n = 1
	}
	return &Bloom{bits: bitset.New(n), n: n}
}

// lanes splits sha256(h) into numLanes 32-bit big-endian words, each
// reduced modulo the filter's bit-size, per spec §6.
func lanes(h change.Hash, n uint) [numLanes]uint {
	digest := sha256.Sum256(h[:])
	var out [numLanes]uint
	for i := 0; i < numLanes; i++ {
		v := binary.BigEndian.Uint32(digest[i*4 : i*4+4])
		out[i] = uint(v) % n
	}
	return out
}

// Add inserts h into the filter.
func (b *Bloom) Add(h change.Hash) {
	for _, lane := range lanes(h, b.n) {
		b.bits.Set(lane)
	}
}

// AddAll inserts every hash in hs.
func (b *Bloom) AddAll(hs []change.Hash) {
	for _, h := range hs {
		b.Add(h)
	}
}

// MayContain reports whether h is possibly a member: false means definitely
// absent, true means possibly present (spec §4.3's "probably-in" test).
func (b *Bloom) MayContain(h change.Hash) bool {
	for _, lane := range lanes(h, b.n) {
		if !b.bits.Test(lane) {
			return false
		}
	}
	return true
}

// Encode serializes the filter as a LEB128 bit-size followed by its packed
// bitmap, per spec §6's "have" entry format.
func (b *Bloom) Encode() []byte {
	buf := leb128.PutUvarint(nil, uint64(b.n))
	return append(buf, packBits(b.bits, b.n)...)
}

// DecodeBloom parses the bytes Encode produced, returning the filter and
// the number of bytes consumed.
func DecodeBloom(data []byte) (*Bloom, int, error) {
	const opName = "syncproto.DecodeBloom"
	n, consumed := leb128.Uvarint(data)
	if consumed == 0 {
		return nil, 0, verr.New(verr.DecodeError, opName, "truncated bloom bit-size", nil)
	}
	nbytes := int((n + 7) / 8)
	if consumed+nbytes > len(data) {
		return nil, 0, verr.New(verr.DecodeError, opName, "truncated bloom bitmap", nil)
	}
	bits := unpackBits(data[consumed:consumed+nbytes], uint(n))
	return &Bloom{bits: bits, n: uint(n)}, consumed + nbytes, nil
}

// packBits and unpackBits convert between a bitset.BitSet and a raw
// bit-packed byte slice through the public Test/Set API only, so the wire
// format does not depend on the library's internal word layout.
func packBits(bs *bitset.BitSet, n uint) []byte {
	out := make([]byte, (n+7)/8)
	for i := uint(0); i < n; i++ {
		if bs.Test(i) {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

func unpackBits(data []byte, n uint) *bitset.BitSet {
	bs := bitset.New(n)
	for i := uint(0); i < n; i++ {
		if data[i/8]&(1<<(i%8)) != 0 {
			bs.Set(i)
		}
	}
	return bs
}
