package frontend

import (
	"github.com/HerbCaudill/automerge/op"
	"github.com/HerbCaudill/automerge/opset"
)

// Recorder is the small mutation-recording API spec §9 calls for in place of
// a language-level mutable-proxy intercept: setKey, delKey, insertAt,
// setIndex, inc, plus the makeX variants that create nested composite
// objects. A Mutator receives one Recorder per Doc.Change call, and the
// Operations it records become that change's op list.
//
// Recorder pre-assigns each recorded op the OpId it will carry once the
// batch becomes a Change (StartOp..StartOp+n-1 for the author actor, in the
// exact order ops are recorded), so a mutator can reference an object or
// list element it created earlier in the same batch before that Change is
// ever applied. Every call that appends to ops goes through record or
// recordWithChild, the only two places the counter advances, keeping it in lockstep with
// op.ExpandOps's own sequential counter assignment.
type Recorder struct {
	actor   op.ActorId
	counter uint64 // last claimed counter

	ops []op.Operation

	reads        *opset.OpSet
	overlay      map[target][]op.OpId
	listOverlays map[op.OpId]*listOverlay
}

type target struct {
	obj op.OpId
	key op.Key
}

// listOverlay tracks, per list/text object, the elemIds this batch has
// inserted so far in visible order, so a later InsertAt/SetIndex/DeleteIndex
// call in the same batch can resolve an index without re-reading the OpSet.
type listOverlay struct{ elems []op.OpId }

func newRecorder(actor op.ActorId, startCounter uint64, reads *opset.OpSet) *Recorder {
	return &Recorder{
		actor:   actor,
		counter: startCounter,
		reads:   reads,
		overlay: make(map[target][]op.OpId),
	}
}

// record appends o to the batch and returns the OpId it will receive.
func (r *Recorder) record(o op.Operation) op.OpId {
	r.counter++
	id := op.OpId{Counter: r.counter, Actor: r.actor}
	r.ops = append(r.ops, o)
	return id
}

// activeIDs returns the pred set a new op targeting obj/key must declare:
// whatever this batch has already recorded there, falling back to the
// pre-batch OpSet state (spec §3 "pred").
func (r *Recorder) activeIDs(obj op.OpId, key op.Key) []op.OpId {
	t := target{obj, key}
	if ids, ok := r.overlay[t]; ok {
		return ids
	}
	return r.reads.ActiveIDs(obj, key)
}

func (r *Recorder) setOverlay(obj op.OpId, key op.Key, ids []op.OpId) {
	r.overlay[target{obj, key}] = ids
}

// SetKey records a primitive assignment to a map/table key, returning the
// OpId of the new assignment.
func (r *Recorder) SetKey(obj op.OpId, key string, v op.Value) op.OpId {
	k := op.MapKey(key)
	pred := r.activeIDs(obj, k)
	id := r.record(op.Operation{
		Action: op.ActionSet, Obj: obj, Key: k, Pred: pred, Value: v, HasValue: true,
	})
	r.setOverlay(obj, k, []op.OpId{id})
	return id
}

// DelKey records a deletion of a map/table key, overriding whatever is
// currently active there.
func (r *Recorder) DelKey(obj op.OpId, key string) {
	k := op.MapKey(key)
	pred := r.activeIDs(obj, k)
	r.record(op.Operation{Action: op.ActionDel, Obj: obj, Key: k, Pred: pred})
	r.setOverlay(obj, k, nil)
}

// Inc records a counter increment against a map/table key's active
// assignment.
func (r *Recorder) Inc(obj op.OpId, key string, delta int64) {
	k := op.MapKey(key)
	pred := r.activeIDs(obj, k)
	r.record(op.Operation{
		Action: op.ActionInc, Obj: obj, Key: k, Pred: pred, Value: op.Int(delta), HasValue: true,
	})
}

func (r *Recorder) makeKey(obj op.OpId, key string, action op.Action) op.OpId {
	k := op.MapKey(key)
	pred := r.activeIDs(obj, k)
	var child op.OpId
	id := r.recordWithChild(op.Operation{Action: action, Obj: obj, Key: k, Pred: pred}, &child)
	r.setOverlay(obj, k, []op.OpId{id})
	return id
}

// recordWithChild records o, setting *child to the op's own (not-yet-known)
// id before appending, since a makeX op's Child field must equal its own id.
func (r *Recorder) recordWithChild(o op.Operation, child *op.OpId) op.OpId {
	r.counter++
	id := op.OpId{Counter: r.counter, Actor: r.actor}
	*child = id
	o.Child = child
	r.ops = append(r.ops, o)
	return id
}

// MakeMap, MakeList, MakeTable, MakeText create a nested composite object at
// a map/table key, returning the new object's id for chaining further
// mutations against it within the same batch.
func (r *Recorder) MakeMap(obj op.OpId, key string) op.OpId {
	return r.makeKey(obj, key, op.ActionMakeMap)
}
func (r *Recorder) MakeList(obj op.OpId, key string) op.OpId {
	return r.makeKey(obj, key, op.ActionMakeList)
}
func (r *Recorder) MakeTable(obj op.OpId, key string) op.OpId {
	return r.makeKey(obj, key, op.ActionMakeTable)
}
func (r *Recorder) MakeText(obj op.OpId, key string) op.OpId {
	return r.makeKey(obj, key, op.ActionMakeText)
}

// refKeyAt resolves a list index into the RGA reference key insertAt needs:
// the elemId of the element currently at index-1 (or the list head sentinel
// for index 0), consulting this batch's own inserts first.
func (r *Recorder) refKeyAt(obj op.OpId, index int) op.Key {
	if id, ok := r.overlayElemAt(obj, index-1); ok {
		return op.ElemKey(id)
	}
	id, ok := r.reads.ElemIDAt(obj, index-1)
	if !ok {
		return op.HeadKey()
	}
	return op.ElemKey(id)
}

func (r *Recorder) overlayElemAt(obj op.OpId, index int) (op.OpId, bool) {
	lo, ok := r.listOverlays[obj]
	if !ok || index < 0 || index >= len(lo.elems) {
		return op.OpId{}, false
	}
	return lo.elems[index], true
}

// InsertAt inserts a new primitive-valued element at index, shifting
// elements at and after index right by one, and returns its elemId.
func (r *Recorder) InsertAt(obj op.OpId, index int, v op.Value) op.OpId {
	ref := r.refKeyAt(obj, index)
	id := r.record(op.Operation{
		Action: op.ActionSet, Obj: obj, Key: ref, Insert: true, Value: v, HasValue: true,
	})
	r.trackInsert(obj, index, id)
	return id
}

// InsertObjectAt inserts a new nested composite object at index, returning
// its id for chaining further mutations within the same batch.
func (r *Recorder) InsertObjectAt(obj op.OpId, index int, action op.Action) op.OpId {
	ref := r.refKeyAt(obj, index)
	var child op.OpId
	id := r.recordWithChild(op.Operation{Action: action, Obj: obj, Key: ref, Insert: true}, &child)
	r.trackInsert(obj, index, id)
	return id
}

func (r *Recorder) trackInsert(obj op.OpId, index int, id op.OpId) {
	if r.listOverlays == nil {
		r.listOverlays = make(map[op.OpId]*listOverlay)
	}
	lo, ok := r.listOverlays[obj]
	if !ok {
		lo = &listOverlay{}
		r.listOverlays[obj] = lo
	}
	if index < 0 || index > len(lo.elems) {
		index = len(lo.elems)
	}
	lo.elems = append(lo.elems, op.OpId{})
	copy(lo.elems[index+1:], lo.elems[index:])
	lo.elems[index] = id
}

// SetIndex overwrites the value at an existing list/text index.
func (r *Recorder) SetIndex(obj op.OpId, index int, v op.Value) {
	elemID := r.elemAt(obj, index)
	k := op.ElemKey(elemID)
	pred := r.activeIDs(obj, k)
	id := r.record(op.Operation{
		Action: op.ActionSet, Obj: obj, Key: k, Pred: pred, Value: v, HasValue: true,
	})
	r.setOverlay(obj, k, []op.OpId{id})
}

// DeleteIndex removes the element at index.
func (r *Recorder) DeleteIndex(obj op.OpId, index int) {
	elemID := r.elemAt(obj, index)
	k := op.ElemKey(elemID)
	pred := r.activeIDs(obj, k)
	r.record(op.Operation{Action: op.ActionDel, Obj: obj, Key: k, Pred: pred})
	r.setOverlay(obj, k, nil)
}

// IncIndex increments the counter at a list/text index.
func (r *Recorder) IncIndex(obj op.OpId, index int, delta int64) {
	elemID := r.elemAt(obj, index)
	k := op.ElemKey(elemID)
	pred := r.activeIDs(obj, k)
	r.record(op.Operation{
		Action: op.ActionInc, Obj: obj, Key: k, Pred: pred, Value: op.Int(delta), HasValue: true,
	})
}

func (r *Recorder) elemAt(obj op.OpId, index int) op.OpId {
	if id, ok := r.overlayElemAt(obj, index); ok {
		return id
	}
	id, _ := r.reads.ElemIDAt(obj, index)
	return id
}
