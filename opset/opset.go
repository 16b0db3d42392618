// Package opset implements the per-object CRDT state engine (spec §4.2):
// map/table conflict sets, RGA-ordered list/text elements, and counters,
// plus Patch construction. It is the largest component of the engine,
// mirroring the size and central role the teacher's vsync/responder and
// initiator pairing plays for log-record replay, but built around the
// spec's explicit-pred op model instead of per-device generation vectors.
package opset

import (
	"github.com/HerbCaudill/automerge/change"
	"github.com/HerbCaudill/automerge/internal/verr"
	"github.com/HerbCaudill/automerge/op"
	"go.uber.org/zap"
)

// OpSet holds the live CRDT state for a single document: every object
// reachable from the root, keyed by the OpId of its creating op (or
// op.Root for the document root). It is not safe for concurrent use by
// multiple goroutines (spec §5): each document's OpSet is owned by one
// replica handle at a time.
type OpSet struct {
	objects map[op.OpId]*object
	applied map[op.OpId]bool
	log     *zap.SugaredLogger
}

// New creates an OpSet with just the root map object, matching the
// sentinel root OpId 0@0 from spec §6. log may be nil, in which case a
// no-op logger is used.
func New(log *zap.SugaredLogger) *OpSet {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &OpSet{
		objects: make(map[op.OpId]*object),
		applied: make(map[op.OpId]bool),
		log:     log,
	}
	s.objects[op.Root] = newObject(op.Root, op.ActionMakeMap)
	return s
}

// Apply absorbs one Change's ops, in the order given in the change (spec
// §4.2 "Ordering of ops within one change"), and returns the Patch
// describing what changed. Applying the same change twice is a no-op that
// returns an empty Patch, satisfying the Idempotence property (spec §8).
func (s *OpSet) Apply(c *change.Change) (*Patch, error) {
	patch := newPatch()
	for _, eop := range c.ExpandedOps() {
		if err := s.applyOp(eop, patch); err != nil {
			return nil, err
		}
	}
	return patch, nil
}

func (s *OpSet) applyOp(eop op.ExpandedOp, patch *Patch) error {
	if s.applied[eop.ID] {
		return nil // idempotence (spec §8)
	}

	obj, ok := s.objects[eop.Obj]
	if !ok {
		return verr.New(verr.InvalidArgument, "opset.applyOp",
			"op targets unknown object "+eop.Obj.String(), nil)
	}

	var err error
	switch {
	case eop.Action == op.ActionInc:
		err = s.applyInc(obj, eop, patch)
	case isMapLike(obj.kind) || obj.id == op.Root:
		err = s.applyMapOp(obj, eop, patch)
	case isListLike(obj.kind):
		err = s.applyListOp(obj, eop, patch)
	default:
		err = verr.New(verr.InternalInvariant, "opset.applyOp", "object has unknown kind", nil)
	}
	if err != nil {
		return err
	}

	s.applied[eop.ID] = true
	return nil
}

// applyInc attaches an inc op's delta to the counter(s) named in its pred
// set within the object/key it targets (spec §4.2 "Counter").
func (s *OpSet) applyInc(obj *object, eop op.ExpandedOp, patch *Patch) error {
	var assignments []*assignment

	if isMapLike(obj.kind) || obj.id == op.Root {
		key := eop.Key.Str()
		assignments = obj.entries[key]
	} else {
		el := findElement(obj.elements, eop.Key.Elem())
		if el == nil {
			return verr.New(verr.InvalidArgument, "opset.applyInc", "inc targets unknown element", nil)
		}
		assignments = el.assignments
	}

	found := false
	for _, a := range assignments {
		if containsID(eop.Pred, a.id) {
			a.counterDelta += eop.Value.Int()
			found = true
		}
	}
	if !found {
		// InvalidPred: predecessors already overridden by a concurrent op.
		// Treated as a benign warning per spec §4.2/§9, not a failure.
		s.log.Debugw("inc: predecessor not active, treating as benign", "op", eop.ID.String())
	}

	if isMapLike(obj.kind) || obj.id == op.Root {
		emitMapPatch(patch, obj, eop.Key.Str())
	}
	// TODO: inc on a list/text element updates assignments but emits no
	// ListEdit, so an observer watching a counter nested in a list misses
	// the bump; needs an EditUpdate here mirroring updateElement's.
	return nil
}

// applyMapOp handles set/del/makeX targeting a map or table key, or the
// root object (spec §4.2 step 2).
func (s *OpSet) applyMapOp(obj *object, eop op.ExpandedOp, patch *Patch) error {
	key := eop.Key.Str()
	current := obj.entries[key]
	remaining := removeIDs(current, eop.Pred)

	if eop.Action != op.ActionDel {
		a := &assignment{id: eop.ID, value: eop.Value, hasValue: eop.HasValue}
		if eop.Action.IsMake() {
			childID := eop.ID
			a.child = &childID
			s.objects[childID] = newObject(childID, eop.Action)
		} else if eop.Child != nil {
			a.child = eop.Child
		}
		remaining = append(remaining, a)
	}
	obj.entries[key] = remaining

	emitMapPatch(patch, obj, key)
	return nil
}

// emitMapPatch records the full post-op conflict set for key into patch,
// per spec's "deletes still emit a {} diff" rule.
func emitMapPatch(patch *Patch, obj *object, key string) {
	d := patch.objDiff(obj.id, obj.kind)
	conflicts := make(map[op.OpId]*ValueDiff)
	for _, a := range obj.entries[key] {
		conflicts[a.id] = assignmentToValueDiff(a)
	}
	d.Map[key] = conflicts
}

func assignmentToValueDiff(a *assignment) *ValueDiff {
	if a.child != nil {
		return &ValueDiff{IsObj: true, Object: &ObjectDiff{ObjID: *a.child}}
	}
	return &ValueDiff{Value: a.visibleValue()}
}

// findElement locates an element by its elemId.
func findElement(elements []*element, id op.OpId) *element {
	for _, e := range elements {
		if e.id == id {
			return e
		}
	}
	return nil
}

func indexOf(elements []*element, id op.OpId) int {
	for i, e := range elements {
		if e.id == id {
			return i
		}
	}
	return -1
}

// subtreeEnd returns the index just past the subtree rooted at elements[k]:
// elements[k] itself plus every element transitively inserted at it (origin
// equal to elements[k].id or to an id already folded into the subtree).
// obj.elements is a preorder walk of the insertion forest, so a subtree is
// always a contiguous run starting at k; this walks that run forward.
func subtreeEnd(elements []*element, k int) int {
	ids := map[op.OpId]bool{elements[k].id: true}
	j := k + 1
	for j < len(elements) && ids[elements[j].origin] {
		ids[elements[j].id] = true
		j++
	}
	return j
}

// visibleIndex returns the number of visible (non-tombstoned) elements
// strictly before position idx in obj.elements, i.e. the patch-visible
// index a new element at idx will occupy.
func visibleIndex(elements []*element, idx int) int {
	n := 0
	for i := 0; i < idx; i++ {
		if elements[i].visible() {
			n++
		}
	}
	return n
}

// ActiveIDs returns the OpIds of every currently active assignment at a
// map/table key or list element: the predecessor set a new op targeting
// that key must declare (spec §3 "pred"). Used by the frontend recorder to
// compute pred sets the way the origin replica would have.
func (s *OpSet) ActiveIDs(objID op.OpId, key op.Key) []op.OpId {
	obj, ok := s.objects[objID]
	if !ok {
		return nil
	}
	var assignments []*assignment
	if key.IsElem() {
		el := findElement(obj.elements, key.Elem())
		if el == nil {
			return nil
		}
		assignments = el.assignments
	} else {
		assignments = obj.entries[key.Str()]
	}
	out := make([]op.OpId, len(assignments))
	for i, a := range assignments {
		out[i] = a.id
	}
	return out
}

// ElemIDAt returns the elemId of the i-th visible element of a list/text
// object, used by the frontend recorder to resolve an insertion index into
// the RGA reference elemId insertAt needs. i == -1 names the list head.
func (s *OpSet) ElemIDAt(objID op.OpId, i int) (op.OpId, bool) {
	if i == -1 {
		return op.OpId{}, true
	}
	obj, ok := s.objects[objID]
	if !ok {
		return op.OpId{}, false
	}
	idx := 0
	for _, e := range obj.elements {
		if !e.visible() {
			continue
		}
		if idx == i {
			return e.id, true
		}
		idx++
	}
	return op.OpId{}, false
}

// GetConflicts returns the full conflict set at a map/table key, exposed
// per spec §9's reading of the Frontend Interface contract.
func (s *OpSet) GetConflicts(objID op.OpId, key string) map[op.OpId]op.Value {
	obj, ok := s.objects[objID]
	if !ok || !(isMapLike(obj.kind) || objID == op.Root) {
		return nil
	}
	out := make(map[op.OpId]op.Value)
	for _, a := range obj.entries[key] {
		out[a.id] = a.visibleValue()
	}
	return out
}

// GetValue returns the projected (winning) value at a map/table key.
func (s *OpSet) GetValue(objID op.OpId, key string) (op.Value, bool) {
	obj, ok := s.objects[objID]
	if !ok {
		return op.Value{}, false
	}
	w, ok := winner(obj.entries[key])
	if !ok {
		return op.Value{}, false
	}
	return w.visibleValue(), true
}

// ChildAt returns the OpId of the nested object (if any) that currently
// wins at a map/table key.
func (s *OpSet) ChildAt(objID op.OpId, key string) (op.OpId, bool) {
	obj, ok := s.objects[objID]
	if !ok {
		return op.OpId{}, false
	}
	w, ok := winner(obj.entries[key])
	if !ok || w.child == nil {
		return op.OpId{}, false
	}
	return *w.child, true
}

// Keys returns the set of keys with at least one active assignment.
func (s *OpSet) Keys(objID op.OpId) []string {
	obj, ok := s.objects[objID]
	if !ok {
		return nil
	}
	var keys []string
	for k, assignments := range obj.entries {
		if len(assignments) > 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

// ObjectKind returns the creating action of objID, and whether it exists.
func (s *OpSet) ObjectKind(objID op.OpId) (op.Action, bool) {
	obj, ok := s.objects[objID]
	if !ok {
		return 0, false
	}
	return obj.kind, true
}

// ListLen returns the number of visible elements in a list/text object.
func (s *OpSet) ListLen(objID op.OpId) int {
	obj, ok := s.objects[objID]
	if !ok {
		return 0
	}
	n := 0
	for _, e := range obj.elements {
		if e.visible() {
			n++
		}
	}
	return n
}

// ListValueAt returns the winning value of the i-th visible element.
func (s *OpSet) ListValueAt(objID op.OpId, i int) (op.Value, bool) {
	obj, ok := s.objects[objID]
	if !ok {
		return op.Value{}, false
	}
	idx := 0
	for _, e := range obj.elements {
		if !e.visible() {
			continue
		}
		if idx == i {
			w, _ := winner(e.assignments)
			return w.visibleValue(), true
		}
		idx++
	}
	return op.Value{}, false
}

// TextString concatenates the single-character winning values of a Text
// object's visible elements into a Go string.
func (s *OpSet) TextString(objID op.OpId) string {
	obj, ok := s.objects[objID]
	if !ok || obj.kind != op.ActionMakeText {
		return ""
	}
	var out []byte
	for _, e := range obj.elements {
		if !e.visible() {
			continue
		}
		w, _ := winner(e.assignments)
		if w.hasValue && w.value.Kind() == op.KindString {
			out = append(out, w.value.String()...)
		}
	}
	return string(out)
}
