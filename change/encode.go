package change

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/HerbCaudill/automerge/internal/leb128"
	"github.com/HerbCaudill/automerge/op"
)

// Magic bytes and chunk types per spec §6.
const (
	magic0, magic1, magic2, magic3 = 0x85, 0x6f, 0x4a, 0x83
	chunkTypeChange                = 1
	chunkTypeDocument               = 0
)

// EncodeChunk produces the full magic+type+length+payload bytes for a
// single change, the "canonical change encoding" whose SHA-256 digest is
// the change's Hash.
func EncodeChunk(c *Change) []byte {
	payload := encodePayload(c)
	out := make([]byte, 0, len(payload)+9)
	out = append(out, magic0, magic1, magic2, magic3, chunkTypeChange)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	out = append(out, lenBuf[:]...)
	out = append(out, payload...)
	return out
}

// actorTable returns the deduplicated actor list for c, with c.Actor forced
// to index 0 and all other referenced actors sorted ascending after it.
func actorTable(c *Change) ([]op.ActorId, map[op.ActorId]int) {
	set := map[op.ActorId]bool{c.Actor: true}
	for _, o := range c.Ops {
		set[o.Obj.Actor] = true
		if o.Key.IsElem() {
			set[o.Key.Elem().Actor] = true
		}
		if o.Child != nil {
			set[o.Child.Actor] = true
		}
		for _, p := range o.Pred {
			set[p.Actor] = true
		}
	}
	others := make([]op.ActorId, 0, len(set))
	for a := range set {
		if a != c.Actor {
			others = append(others, a)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })

	table := make([]op.ActorId, 0, len(others)+1)
	table = append(table, c.Actor)
	table = append(table, others...)

	idx := make(map[op.ActorId]int, len(table))
	for i, a := range table {
		idx[a] = i
	}
	return table, idx
}

type bitWriter struct {
	buf  []byte
	cur  byte
	nbit int
}

func (w *bitWriter) put(bit bool) {
	w.cur <<= 1
	if bit {
		w.cur |= 1
	}
	w.nbit++
	if w.nbit == 8 {
		w.buf = append(w.buf, w.cur)
		w.cur, w.nbit = 0, 0
	}
}

func (w *bitWriter) bytes() []byte {
	if w.nbit > 0 {
		w.cur <<= uint(8 - w.nbit)
		w.buf = append(w.buf, w.cur)
		w.cur, w.nbit = 0, 0
	}
	return w.buf
}

type bitReader struct {
	buf  []byte
	pos  int // bit position
}

func (r *bitReader) get() bool {
	byteIdx := r.pos / 8
	bitIdx := uint(7 - r.pos%8)
	r.pos++
	if byteIdx >= len(r.buf) {
		return false
	}
	return (r.buf[byteIdx]>>bitIdx)&1 == 1
}

func bitmapLen(n int) int { return (n + 7) / 8 }

func encodeValue(buf []byte, v op.Value) []byte {
	buf = append(buf, byte(v.Kind()))
	switch v.Kind() {
	case op.KindNull:
		// no payload
	case op.KindBool:
		if v.Bool() {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case op.KindInt, op.KindCounter, op.KindTimestamp:
		buf = leb128.PutVarint(buf, v.Int())
	case op.KindFloat:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Float()))
		buf = append(buf, b[:]...)
	case op.KindString:
		buf = leb128.PutString(buf, v.String())
	}
	return buf
}

func decodeValue(buf []byte) (op.Value, int, bool) {
	if len(buf) < 1 {
		return op.Value{}, 0, false
	}
	kind := op.Kind(buf[0])
	n := 1
	switch kind {
	case op.KindNull:
		return op.Null(), n, true
	case op.KindBool:
		if len(buf) < 2 {
			return op.Value{}, 0, false
		}
		return op.Bool(buf[1] != 0), n + 1, true
	case op.KindInt:
		i, m := leb128.Varint(buf[n:])
		if m == 0 {
			return op.Value{}, 0, false
		}
		return op.Int(i), n + m, true
	case op.KindCounter:
		i, m := leb128.Varint(buf[n:])
		if m == 0 {
			return op.Value{}, 0, false
		}
		return op.Counter(i), n + m, true
	case op.KindTimestamp:
		i, m := leb128.Varint(buf[n:])
		if m == 0 {
			return op.Value{}, 0, false
		}
		return op.Timestamp(i), n + m, true
	case op.KindFloat:
		if len(buf) < n+8 {
			return op.Value{}, 0, false
		}
		f := math.Float64frombits(binary.BigEndian.Uint64(buf[n : n+8]))
		return op.Float(f), n + 8, true
	case op.KindString:
		s, m, ok := leb128.String(buf[n:])
		if !ok {
			return op.Value{}, 0, false
		}
		return op.String(s), n + m, true
	default:
		return op.Value{}, 0, false
	}
}

// encodePayload builds the LEB128 header plus per-column op field arrays
// described in spec §6.
func encodePayload(c *Change) []byte {
	table, idx := actorTable(c)
	buf := make([]byte, 0, 256)

	buf = leb128.PutUvarint(buf, uint64(len(table)))
	for _, a := range table {
		buf = leb128.PutBytes(buf, []byte(a))
	}
	buf = leb128.PutUvarint(buf, c.Seq)
	buf = leb128.PutUvarint(buf, c.StartOp)
	buf = leb128.PutVarint(buf, c.Time)
	buf = leb128.PutString(buf, c.Message)

	deps := c.sortedDeps()
	buf = leb128.PutUvarint(buf, uint64(len(deps)))
	for _, d := range deps {
		buf = append(buf, d[:]...)
	}

	n := len(c.Ops)
	buf = leb128.PutUvarint(buf, uint64(n))

	// objActor / objCounter columns.
	for _, o := range c.Ops {
		buf = leb128.PutUvarint(buf, uint64(idx[o.Obj.Actor]))
		buf = leb128.PutUvarint(buf, o.Obj.Counter)
	}

	// isMapKey bitmap.
	isMapKeyBits := &bitWriter{}
	for _, o := range c.Ops {
		isMapKeyBits.put(!o.Key.IsElem())
	}
	buf = append(buf, isMapKeyBits.bytes()...)

	// keyStr stream (only for map-key ops, in order).
	for _, o := range c.Ops {
		if !o.Key.IsElem() {
			buf = leb128.PutString(buf, o.Key.Str())
		}
	}
	// keyActor/keyCounter stream (only for elem-key ops, in order).
	for _, o := range c.Ops {
		if o.Key.IsElem() {
			elem := o.Key.Elem()
			buf = leb128.PutUvarint(buf, uint64(idx[elem.Actor]))
			buf = leb128.PutUvarint(buf, elem.Counter)
		}
	}

	// insert bitmap.
	insertBits := &bitWriter{}
	for _, o := range c.Ops {
		insertBits.put(o.Insert)
	}
	buf = append(buf, insertBits.bytes()...)

	// action enum, one byte per op.
	for _, o := range c.Ops {
		buf = append(buf, byte(o.Action))
	}

	// hasValue bitmap + value stream (single-value ops only).
	hasValueBits := &bitWriter{}
	for _, o := range c.Ops {
		hasValueBits.put(o.HasValue && o.MultiOp <= 1)
	}
	buf = append(buf, hasValueBits.bytes()...)
	for _, o := range c.Ops {
		if o.HasValue && o.MultiOp <= 1 {
			buf = encodeValue(buf, o.Value)
		}
	}

	// hasChild bitmap + child stream.
	hasChildBits := &bitWriter{}
	for _, o := range c.Ops {
		hasChildBits.put(o.Child != nil)
	}
	buf = append(buf, hasChildBits.bytes()...)
	for _, o := range c.Ops {
		if o.Child != nil {
			buf = leb128.PutUvarint(buf, uint64(idx[o.Child.Actor]))
			buf = leb128.PutUvarint(buf, o.Child.Counter)
		}
	}

	// pred-group: count column, then flattened (actorIdx,counter) entries.
	for _, o := range c.Ops {
		buf = leb128.PutUvarint(buf, uint64(len(o.Pred)))
	}
	for _, o := range c.Ops {
		pred := make([]op.OpId, len(o.Pred))
		copy(pred, o.Pred)
		op.SortOpIds(pred)
		for _, p := range pred {
			buf = leb128.PutUvarint(buf, uint64(idx[p.Actor]))
			buf = leb128.PutUvarint(buf, p.Counter)
		}
	}

	// multiOp column, and trailing run-length value arrays for multiOp ops.
	for _, o := range c.Ops {
		buf = leb128.PutUvarint(buf, o.MultiOp)
	}
	for _, o := range c.Ops {
		if o.MultiOp > 1 {
			for i := uint64(0); i < o.MultiOp; i++ {
				var v op.Value
				if int(i) < len(o.Values) {
					v = o.Values[i]
				}
				buf = encodeValue(buf, v)
			}
		}
	}

	return buf
}
