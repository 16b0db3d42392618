// Package columnar implements the whole-document encoding from spec §6: all
// of a document's changes concatenated in canonical order, plus a dedup'd
// actor table and a hash index, wrapped in the same magic/chunk-type/length
// framing as a single change. It builds on package change's per-change
// codec (spec §6's "Columnar Codec" component spans both: the per-change
// bit-exact encoding that defines a change's Hash, owned by package change
// to avoid an import cycle, and this document-level concatenation/index,
// owned here).
package columnar

import (
	"encoding/binary"
	"sort"

	"github.com/HerbCaudill/automerge/change"
	"github.com/HerbCaudill/automerge/internal/leb128"
	"github.com/HerbCaudill/automerge/internal/verr"
	"github.com/HerbCaudill/automerge/op"

	"github.com/cespare/xxhash/v2"
)

const (
	magic0, magic1, magic2, magic3 = 0x85, 0x6f, 0x4a, 0x83
	chunkTypeChange                = 1
	chunkTypeDocument              = 0
)

// Document is a decoded whole-document encoding: its changes plus the
// supplementary indices built over them.
type Document struct {
	Changes []*change.Change
	Actors  []op.ActorId

	// Index maps a change hash to its offset within the concatenated
	// change-chunk section, rebuilt identically on decode.
	Index map[change.Hash]int

	// KeyDict maps the xxhash64 of each distinct map/table key string used
	// anywhere in the document to that string, a compact dictionary
	// exercised purely as an introspection aid (spec's "dictionary" framing
	// of the columnar format) rather than as a correctness requirement.
	KeyDict map[uint64]string
}

// CanonicalOrder sorts changes into the order spec §6 mandates for document
// encoding: topological (dependencies first), ties broken by hash
// ascending. Returns an error if changes contains a cycle or a dep not
// present in the input set (both would violate the DAG invariants).
func CanonicalOrder(changes []*change.Change) ([]*change.Change, error) {
	byHash := make(map[change.Hash]*change.Change, len(changes))
	indeg := make(map[change.Hash]int, len(changes))
	for _, c := range changes {
		byHash[c.Hash()] = c
	}
	for _, c := range changes {
		h := c.Hash()
		if _, ok := indeg[h]; !ok {
			indeg[h] = 0
		}
		for _, d := range c.Deps {
			if _, ok := byHash[d]; !ok {
				return nil, verr.New(verr.InvalidArgument, "columnar.CanonicalOrder",
					"change depends on a hash outside the input set", nil)
			}
		}
	}
	// indegree here counts deps still unresolved, tracked via a reverse
	// adjacency (dep -> dependents) so we can process Kahn's algorithm.
	dependents := make(map[change.Hash][]change.Hash)
	remaining := make(map[change.Hash]int, len(changes))
	for _, c := range changes {
		h := c.Hash()
		remaining[h] = len(c.Deps)
		for _, d := range c.Deps {
			dependents[d] = append(dependents[d], h)
		}
	}

	var ready []change.Hash
	for h, n := range remaining {
		if n == 0 {
			ready = append(ready, h)
		}
	}
	change.SortHashes(ready)

	out := make([]*change.Change, 0, len(changes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].Less(ready[j]) })
		h := ready[0]
		ready = ready[1:]
		out = append(out, byHash[h])
		for _, dep := range dependents[h] {
			remaining[dep]--
			if remaining[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(out) != len(changes) {
		return nil, verr.New(verr.InvalidArgument, "columnar.CanonicalOrder",
			"dependency cycle detected among input changes", nil)
	}
	return out, nil
}

// EncodeDocument produces the full magic+type+length+payload bytes for a
// whole document: changes in canonical order, a dedup'd actor table, and a
// key dictionary.
func EncodeDocument(changes []*change.Change) ([]byte, error) {
	ordered, err := CanonicalOrder(changes)
	if err != nil {
		return nil, err
	}

	actorSet := map[op.ActorId]bool{}
	keySet := map[string]bool{}
	for _, c := range ordered {
		actorSet[c.Actor] = true
		for _, o := range c.Ops {
			if !o.Key.IsElem() {
				keySet[o.Key.Str()] = true
			}
		}
	}
	actors := make([]op.ActorId, 0, len(actorSet))
	for a := range actorSet {
		actors = append(actors, a)
	}
	sort.Slice(actors, func(i, j int) bool { return actors[i] < actors[j] })

	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := make([]byte, 0, 1024)
	payload = leb128.PutUvarint(payload, uint64(len(actors)))
	for _, a := range actors {
		payload = leb128.PutBytes(payload, []byte(a))
	}

	payload = leb128.PutUvarint(payload, uint64(len(keys)))
	for _, k := range keys {
		payload = leb128.PutUvarint(payload, xxhash.Sum64String(k))
		payload = leb128.PutString(payload, k)
	}

	payload = leb128.PutUvarint(payload, uint64(len(ordered)))
	chunkStarts := make([]int, len(ordered))
	chunksSection := make([]byte, 0, 1024)
	for i, c := range ordered {
		chunkStarts[i] = len(chunksSection)
		chunksSection = append(chunksSection, change.EncodeChunk(c)...)
	}
	payload = append(payload, chunksSection...)

	payload = leb128.PutUvarint(payload, uint64(len(ordered)))
	for i, c := range ordered {
		h := c.Hash()
		payload = append(payload, h[:]...)
		payload = leb128.PutUvarint(payload, uint64(chunkStarts[i]))
	}

	out := make([]byte, 0, len(payload)+9)
	out = append(out, magic0, magic1, magic2, magic3, chunkTypeDocument)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	out = append(out, lenBuf[:]...)
	out = append(out, payload...)
	return out, nil
}

// DecodeDocument parses the bytes EncodeDocument produced.
func DecodeDocument(data []byte) (*Document, error) {
	const opName = "columnar.DecodeDocument"
	if len(data) < 9 {
		return nil, verr.New(verr.DecodeError, opName, "document shorter than header", nil)
	}
	if data[0] != magic0 || data[1] != magic1 || data[2] != magic2 || data[3] != magic3 {
		return nil, verr.New(verr.DecodeError, opName, "bad magic bytes", nil)
	}
	if data[4] != chunkTypeDocument {
		return nil, verr.New(verr.DecodeError, opName, "unexpected chunk type, want document chunk", nil)
	}
	length := binary.BigEndian.Uint32(data[5:9])
	rest := data[9:]
	if uint32(len(rest)) < length {
		return nil, verr.New(verr.DecodeError, opName, "truncated document payload", nil)
	}
	payload := rest[:length]

	cur := payload
	actorCount, n := leb128.Uvarint(cur)
	if n == 0 {
		return nil, verr.New(verr.DecodeError, opName, "truncated actor count", nil)
	}
	cur = cur[n:]
	actors := make([]op.ActorId, actorCount)
	for i := range actors {
		b, m, ok := leb128.Bytes(cur)
		if !ok {
			return nil, verr.New(verr.DecodeError, opName, "truncated actor table", nil)
		}
		actors[i] = op.ActorId(b)
		cur = cur[m:]
	}

	keyCount, n := leb128.Uvarint(cur)
	if n == 0 {
		return nil, verr.New(verr.DecodeError, opName, "truncated key dict count", nil)
	}
	cur = cur[n:]
	keyDict := make(map[uint64]string, keyCount)
	for i := uint64(0); i < keyCount; i++ {
		id, m := leb128.Uvarint(cur)
		if m == 0 {
			return nil, verr.New(verr.DecodeError, opName, "truncated key dict id", nil)
		}
		cur = cur[m:]
		s, m, ok := leb128.String(cur)
		if !ok {
			return nil, verr.New(verr.DecodeError, opName, "truncated key dict string", nil)
		}
		cur = cur[m:]
		keyDict[id] = s
	}

	changeCount, n := leb128.Uvarint(cur)
	if n == 0 {
		return nil, verr.New(verr.DecodeError, opName, "truncated change count", nil)
	}
	cur = cur[n:]

	chunksStart := len(payload) - len(cur)
	changes := make([]*change.Change, 0, changeCount)
	pos := 0
	for i := uint64(0); i < changeCount; i++ {
		chunk := payload[chunksStart+pos:]
		if len(chunk) < 9 {
			return nil, verr.New(verr.DecodeError, opName, "truncated embedded change chunk", nil)
		}
		chunkLen := binary.BigEndian.Uint32(chunk[5:9])
		total := 9 + int(chunkLen)
		if total > len(chunk) {
			return nil, verr.New(verr.DecodeError, opName, "truncated embedded change chunk body", nil)
		}
		c, err := change.DecodeChunk(chunk[:total])
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
		pos += total
	}
	cur = cur[pos:]

	idxCount, n := leb128.Uvarint(cur)
	if n == 0 {
		return nil, verr.New(verr.DecodeError, opName, "truncated index count", nil)
	}
	cur = cur[n:]
	index := make(map[change.Hash]int, idxCount)
	for i := uint64(0); i < idxCount; i++ {
		if len(cur) < 32 {
			return nil, verr.New(verr.DecodeError, opName, "truncated index hash", nil)
		}
		var h change.Hash
		copy(h[:], cur[:32])
		cur = cur[32:]
		off, m := leb128.Uvarint(cur)
		if m == 0 {
			return nil, verr.New(verr.DecodeError, opName, "truncated index offset", nil)
		}
		cur = cur[m:]
		index[h] = int(off)
	}

	return &Document{
		Changes: changes,
		Actors:  actors,
		Index:   index,
		KeyDict: keyDict,
	}, nil
}
