package syncproto

import (
	"encoding/binary"

	"github.com/HerbCaudill/automerge/change"
	"github.com/HerbCaudill/automerge/internal/leb128"
	"github.com/HerbCaudill/automerge/internal/verr"
)

const (
	syncMagic   = 0x42
	syncVersion = 0
)

// Have is one entry of a Message's have list: a set of anchor heads plus a
// Bloom filter over every change hash reachable from them (spec §4.3).
type Have struct {
	Anchors []change.Hash
	Filter  *Bloom
}

// Message is the wire shape of one sync exchange (spec §4.3/§6).
type Message struct {
	Heads   []change.Hash
	Need    []change.Hash
	Have    []Have
	Changes []*change.Change
}

// Encode serializes m per spec §6: magic 0x42, version 0, heads, need,
// have, changes.
func (m *Message) Encode() []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, syncMagic, syncVersion)

	buf = encodeHashList(buf, m.Heads)
	buf = encodeHashList(buf, m.Need)

	buf = leb128.PutUvarint(buf, uint64(len(m.Have)))
	for _, have := range m.Have {
		buf = encodeHashList(buf, have.Anchors)
		buf = append(buf, have.Filter.Encode()...)
	}

	buf = leb128.PutUvarint(buf, uint64(len(m.Changes)))
	for _, c := range m.Changes {
		buf = append(buf, change.EncodeChunk(c)...)
	}
	return buf
}

// DecodeMessage parses the bytes Encode produced.
func DecodeMessage(data []byte) (*Message, error) {
	const opName = "syncproto.DecodeMessage"
	if len(data) < 2 {
		return nil, verr.New(verr.DecodeError, opName, "message shorter than header", nil)
	}
	if data[0] != syncMagic {
		return nil, verr.New(verr.DecodeError, opName, "bad sync magic byte", nil)
	}
	if data[1] != syncVersion {
		return nil, verr.New(verr.DecodeError, opName, "unsupported sync protocol version", nil)
	}
	cur := data[2:]

	heads, n, err := decodeHashList(cur, opName)
	if err != nil {
		return nil, err
	}
	cur = cur[n:]

	need, n, err := decodeHashList(cur, opName)
	if err != nil {
		return nil, err
	}
	cur = cur[n:]

	haveCount, n := leb128.Uvarint(cur)
	if n == 0 {
		return nil, verr.New(verr.DecodeError, opName, "truncated have count", nil)
	}
	cur = cur[n:]
	haves := make([]Have, haveCount)
	for i := range haves {
		anchors, m, err := decodeHashList(cur, opName)
		if err != nil {
			return nil, err
		}
		cur = cur[m:]
		filter, m, err := DecodeBloom(cur)
		if err != nil {
			return nil, err
		}
		cur = cur[m:]
		haves[i] = Have{Anchors: anchors, Filter: filter}
	}

	changeCount, n := leb128.Uvarint(cur)
	if n == 0 {
		return nil, verr.New(verr.DecodeError, opName, "truncated change count", nil)
	}
	cur = cur[n:]
	changes := make([]*change.Change, changeCount)
	for i := range changes {
		if len(cur) < 9 {
			return nil, verr.New(verr.DecodeError, opName, "truncated embedded change", nil)
		}
		chunkLen := binary.BigEndian.Uint32(cur[5:9])
		total := 9 + int(chunkLen)
		if total > len(cur) {
			return nil, verr.New(verr.DecodeError, opName, "truncated embedded change body", nil)
		}
		c, err := change.DecodeChunk(cur[:total])
		if err != nil {
			return nil, err
		}
		changes[i] = c
		cur = cur[total:]
	}

	return &Message{Heads: heads, Need: need, Have: haves, Changes: changes}, nil
}

func encodeHashList(buf []byte, hs []change.Hash) []byte {
	sorted := make([]change.Hash, len(hs))
	copy(sorted, hs)
	change.SortHashes(sorted)
	buf = leb128.PutUvarint(buf, uint64(len(sorted)))
	for _, h := range sorted {
		buf = append(buf, h[:]...)
	}
	return buf
}

func decodeHashList(buf []byte, opName string) ([]change.Hash, int, error) {
	count, n := leb128.Uvarint(buf)
	if n == 0 {
		return nil, 0, verr.New(verr.DecodeError, opName, "truncated hash list count", nil)
	}
	pos := n
	out := make([]change.Hash, count)
	for i := range out {
		if pos+32 > len(buf) {
			return nil, 0, verr.New(verr.DecodeError, opName, "truncated hash list entry", nil)
		}
		copy(out[i][:], buf[pos:pos+32])
		pos += 32
	}
	return out, pos, nil
}
