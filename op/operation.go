package op

// Key identifies the target of an operation within its object: a string for
// map/table keys, or an element id (the OpId of the insert that created the
// element) for list/text positions. The zero Key (IsElem()==false,
// Str()=="") is never a valid map key in practice, but the zero *element*
// key (IsElem()==true, Elem()==OpId{}) is the "list head" sentinel used as
// the reference position for an insert at index 0.
type Key struct {
	isElem bool
	str    string
	elem   OpId
}

// MapKey builds a string key for map/table operations.
func MapKey(s string) Key { return Key{str: s} }

// ElemKey builds an element-id key for list/text operations, naming the
// element an op targets (for set/del) or the reference element after which
// a new element is inserted (for insert).
func ElemKey(id OpId) Key { return Key{isElem: true, elem: id} }

// HeadKey is the reference key for inserting at the very start of a list.
func HeadKey() Key { return ElemKey(OpId{}) }

func (k Key) IsElem() bool { return k.isElem }
func (k Key) Str() string  { return k.str }
func (k Key) Elem() OpId   { return k.elem }

func (k Key) String() string {
	if k.isElem {
		if k.elem.IsNull() {
			return "_head"
		}
		return k.elem.String()
	}
	return k.str
}

// Equal reports whether two keys name the same target.
func (k Key) Equal(other Key) bool {
	if k.isElem != other.isElem {
		return false
	}
	if k.isElem {
		return k.elem == other.elem
	}
	return k.str == other.str
}

// Operation is the compact, wire-level representation of a single mutation
// as carried in a Change's ops list (spec §3). A single Operation with
// MultiOp > 1 represents a run of consecutive primitive list insertions
// sharing one base reference key, expanded by ExpandOps into one
// ExpandedOp per element.
type Operation struct {
	Action   Action
	Obj      OpId
	Key      Key
	Insert   bool
	Pred     []OpId
	Value    Value
	HasValue bool
	Child    *OpId

	// Values and MultiOp encode a run of MultiOp consecutive primitive
	// inserts starting at Key's position; Values must have length MultiOp
	// when MultiOp > 1. Ignored otherwise.
	Values  []Value
	MultiOp uint64
}

// NumCounters returns how many consecutive op-ids this Operation claims:
// 1 normally, or MultiOp for a run-length-encoded multi-insert.
func (o Operation) NumCounters() uint64 {
	if o.MultiOp > 1 {
		return o.MultiOp
	}
	return 1
}

// ExpandedOp is a single, fully-resolved operation with its own OpId
// assigned, as consumed by the OpSet. It is the unit ExpandOps produces
// from a Change's compact Operation list.
type ExpandedOp struct {
	ID       OpId
	Action   Action
	Obj      OpId
	Key      Key
	Insert   bool
	Pred     []OpId
	Value    Value
	HasValue bool
	Child    *OpId
}

// ExpandOps assigns op-ids to a change's compact operation list, expanding
// any multiOp runs into one ExpandedOp per element per spec §9: "treat
// multiOp strictly as a run-length count of consecutive primitive inserts
// sharing a base elemId, with counters incrementing by 1 per element."
// startOp is the change's declared startOp counter; actor is the change's
// actor. The returned slice claims counters startOp..startOp+n-1 where n is
// the sum of each Operation's NumCounters().
func ExpandOps(startOp uint64, actor ActorId, ops []Operation) []ExpandedOp {
	out := make([]ExpandedOp, 0, len(ops))
	counter := startOp
	for _, o := range ops {
		if o.MultiOp > 1 {
			ref := o.Key
			for i := uint64(0); i < o.MultiOp; i++ {
				id := OpId{Counter: counter, Actor: actor}
				var pred []OpId
				if i == 0 {
					pred = o.Pred
				}
				var val Value
				if int(i) < len(o.Values) {
					val = o.Values[i]
				}
				out = append(out, ExpandedOp{
					ID:       id,
					Action:   ActionSet,
					Obj:      o.Obj,
					Key:      ref,
					Insert:   true,
					Pred:     pred,
					Value:    val,
					HasValue: true,
				})
				ref = ElemKey(id)
				counter++
			}
			continue
		}
		id := OpId{Counter: counter, Actor: actor}
		out = append(out, ExpandedOp{
			ID:       id,
			Action:   o.Action,
			Obj:      o.Obj,
			Key:      o.Key,
			Insert:   o.Insert,
			Pred:     o.Pred,
			Value:    o.Value,
			HasValue: o.HasValue,
			Child:    o.Child,
		})
		counter++
	}
	return out
}

// TotalCounters sums NumCounters over ops, the number of op-ids a change
// claims starting at its startOp.
func TotalCounters(ops []Operation) uint64 {
	var n uint64
	for _, o := range ops {
		n += o.NumCounters()
	}
	return n
}
