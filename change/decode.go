package change

import (
	"encoding/binary"

	"github.com/HerbCaudill/automerge/internal/leb128"
	"github.com/HerbCaudill/automerge/internal/verr"
	"github.com/HerbCaudill/automerge/op"
)

// DecodeChunk parses the magic+type+length+payload framing produced by
// EncodeChunk and returns the decoded Change. Fails with a DecodeError kind
// on bad magic, truncated input, or an unexpected chunk type.
func DecodeChunk(data []byte) (*Change, error) {
	const op_ = "change.DecodeChunk"
	if len(data) < 9 {
		return nil, verr.New(verr.DecodeError, op_, "chunk shorter than header", nil)
	}
	if data[0] != magic0 || data[1] != magic1 || data[2] != magic2 || data[3] != magic3 {
		return nil, verr.New(verr.DecodeError, op_, "bad magic bytes", nil)
	}
	if data[4] != chunkTypeChange {
		return nil, verr.New(verr.DecodeError, op_, "unexpected chunk type, want change chunk", nil)
	}
	length := binary.BigEndian.Uint32(data[5:9])
	payload := data[9:]
	if uint32(len(payload)) < length {
		return nil, verr.New(verr.DecodeError, op_, "truncated chunk payload", nil)
	}
	payload = payload[:length]
	return decodePayload(payload)
}

type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) rest() []byte { return c.buf[c.pos:] }

func (c *cursor) uvarint() (uint64, bool) {
	v, n := leb128.Uvarint(c.rest())
	if n == 0 {
		return 0, false
	}
	c.pos += n
	return v, true
}

func (c *cursor) varint() (int64, bool) {
	v, n := leb128.Varint(c.rest())
	if n == 0 {
		return 0, false
	}
	c.pos += n
	return v, true
}

func (c *cursor) bytes() ([]byte, bool) {
	b, n, ok := leb128.Bytes(c.rest())
	if !ok {
		return nil, false
	}
	c.pos += n
	return b, true
}

func (c *cursor) str() (string, bool) {
	s, n, ok := leb128.String(c.rest())
	if !ok {
		return "", false
	}
	c.pos += n
	return s, true
}

func (c *cursor) take(n int) ([]byte, bool) {
	if c.pos+n > len(c.buf) {
		return nil, false
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, true
}

func decodePayload(payload []byte) (*Change, error) {
	const op_ = "change.decodePayload"
	fail := func(msg string) (*Change, error) { return nil, verr.New(verr.DecodeError, op_, msg, nil) }

	cur := &cursor{buf: payload}

	actorCount, ok := cur.uvarint()
	if !ok {
		return fail("truncated actor count")
	}
	table := make([]op.ActorId, actorCount)
	for i := range table {
		b, ok := cur.bytes()
		if !ok {
			return fail("truncated actor table")
		}
		table[i] = op.ActorId(b)
	}
	actorAt := func(i uint64) (op.ActorId, bool) {
		if i >= uint64(len(table)) {
			return "", false
		}
		return table[i], true
	}

	seq, ok := cur.uvarint()
	if !ok {
		return fail("truncated seq")
	}
	startOp, ok := cur.uvarint()
	if !ok {
		return fail("truncated startOp")
	}
	t, ok := cur.varint()
	if !ok {
		return fail("truncated time")
	}
	msg, ok := cur.str()
	if !ok {
		return fail("truncated message")
	}

	depCount, ok := cur.uvarint()
	if !ok {
		return fail("truncated deps count")
	}
	deps := make([]Hash, depCount)
	for i := range deps {
		b, ok := cur.take(32)
		if !ok {
			return fail("truncated deps")
		}
		copy(deps[i][:], b)
	}

	n64, ok := cur.uvarint()
	if !ok {
		return fail("truncated op count")
	}
	n := int(n64)

	ops := make([]op.Operation, n)

	for i := 0; i < n; i++ {
		a, ok := cur.uvarint()
		if !ok {
			return fail("truncated objActor")
		}
		ctr, ok := cur.uvarint()
		if !ok {
			return fail("truncated objCounter")
		}
		actor, ok := actorAt(a)
		if !ok {
			return fail("objActor index out of range")
		}
		ops[i].Obj = op.OpId{Counter: ctr, Actor: actor}
	}

	bmLen := bitmapLen(n)
	bm, ok := cur.take(bmLen)
	if !ok {
		return fail("truncated isMapKey bitmap")
	}
	isMapKey := &bitReader{buf: bm}
	mapKeyFlags := make([]bool, n)
	for i := 0; i < n; i++ {
		mapKeyFlags[i] = isMapKey.get()
	}

	for i := 0; i < n; i++ {
		if mapKeyFlags[i] {
			s, ok := cur.str()
			if !ok {
				return fail("truncated keyStr")
			}
			ops[i].Key = op.MapKey(s)
		}
	}
	for i := 0; i < n; i++ {
		if !mapKeyFlags[i] {
			a, ok := cur.uvarint()
			if !ok {
				return fail("truncated keyActor")
			}
			ctr, ok := cur.uvarint()
			if !ok {
				return fail("truncated keyCounter")
			}
			actor, ok := actorAt(a)
			if !ok {
				return fail("keyActor index out of range")
			}
			ops[i].Key = op.ElemKey(op.OpId{Counter: ctr, Actor: actor})
		}
	}

	bm, ok = cur.take(bmLen)
	if !ok {
		return fail("truncated insert bitmap")
	}
	insertBits := &bitReader{buf: bm}
	for i := 0; i < n; i++ {
		ops[i].Insert = insertBits.get()
	}

	actions, ok := cur.take(n)
	if !ok {
		return fail("truncated action enum")
	}
	for i := 0; i < n; i++ {
		ops[i].Action = op.Action(actions[i])
	}

	bm, ok = cur.take(bmLen)
	if !ok {
		return fail("truncated hasValue bitmap")
	}
	hasValueBits := &bitReader{buf: bm}
	hasValue := make([]bool, n)
	for i := 0; i < n; i++ {
		hasValue[i] = hasValueBits.get()
	}
	for i := 0; i < n; i++ {
		if hasValue[i] {
			v, m, ok := decodeValue(cur.rest())
			if !ok {
				return fail("truncated value")
			}
			cur.pos += m
			ops[i].Value = v
			ops[i].HasValue = true
		}
	}

	bm, ok = cur.take(bmLen)
	if !ok {
		return fail("truncated hasChild bitmap")
	}
	hasChildBits := &bitReader{buf: bm}
	hasChild := make([]bool, n)
	for i := 0; i < n; i++ {
		hasChild[i] = hasChildBits.get()
	}
	for i := 0; i < n; i++ {
		if hasChild[i] {
			a, ok := cur.uvarint()
			if !ok {
				return fail("truncated childActor")
			}
			ctr, ok := cur.uvarint()
			if !ok {
				return fail("truncated childCounter")
			}
			actor, ok := actorAt(a)
			if !ok {
				return fail("childActor index out of range")
			}
			id := op.OpId{Counter: ctr, Actor: actor}
			ops[i].Child = &id
		}
	}

	predCounts := make([]int, n)
	for i := 0; i < n; i++ {
		c, ok := cur.uvarint()
		if !ok {
			return fail("truncated predCount")
		}
		predCounts[i] = int(c)
	}
	for i := 0; i < n; i++ {
		if predCounts[i] == 0 {
			continue
		}
		pred := make([]op.OpId, predCounts[i])
		for j := range pred {
			a, ok := cur.uvarint()
			if !ok {
				return fail("truncated predActor")
			}
			ctr, ok := cur.uvarint()
			if !ok {
				return fail("truncated predCounter")
			}
			actor, ok := actorAt(a)
			if !ok {
				return fail("predActor index out of range")
			}
			pred[j] = op.OpId{Counter: ctr, Actor: actor}
		}
		ops[i].Pred = pred
	}

	multiOps := make([]uint64, n)
	for i := 0; i < n; i++ {
		m, ok := cur.uvarint()
		if !ok {
			return fail("truncated multiOp")
		}
		multiOps[i] = m
		ops[i].MultiOp = m
	}
	for i := 0; i < n; i++ {
		if multiOps[i] > 1 {
			values := make([]op.Value, multiOps[i])
			for j := range values {
				v, m, ok := decodeValue(cur.rest())
				if !ok {
					return fail("truncated multi value")
				}
				cur.pos += m
				values[j] = v
			}
			ops[i].Values = values
		}
	}

	return &Change{
		Actor:   table[0],
		Seq:     seq,
		StartOp: startOp,
		Time:    t,
		Message: msg,
		Deps:    deps,
		Ops:     ops,
	}, nil
}
