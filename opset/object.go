package opset

import "github.com/HerbCaudill/automerge/op"

// assignment is one member of a key's (or list element's) conflict set: an
// OpId that assigned a value or created a child object there, still active
// because nothing later overrode it (spec §4.2, Glossary "Conflict set").
type assignment struct {
	id           op.OpId
	value        op.Value
	hasValue     bool
	child        *op.OpId
	counterDelta int64 // sum of inc deltas applied against this assignment
}

// visibleValue returns the value this assignment projects, folding in any
// accumulated counter increments (spec §4.2 "Counter").
func (a *assignment) visibleValue() op.Value {
	if a.hasValue && a.value.Kind() == op.KindCounter {
		return a.value.Add(a.counterDelta)
	}
	return a.value
}

// element is one position in a List/Text object: a stable elemId (the OpId
// of the insert that created it) plus its own conflict set. Elements whose
// conflict set is empty are tombstones: still present to anchor future RGA
// insertions, but invisible in the projected document.
type element struct {
	id          op.OpId
	origin      op.OpId // the reference elemId this element was inserted after (zero = head)
	assignments []*assignment
}

func (e *element) visible() bool { return len(e.assignments) > 0 }

// winner returns the greatest-OpId active assignment, per spec's
// "greatest-OpId assignment wins" projection rule. ok is false if the
// conflict set is empty (deleted).
func winner(assignments []*assignment) (*assignment, bool) {
	if len(assignments) == 0 {
		return nil, false
	}
	best := assignments[0]
	for _, a := range assignments[1:] {
		if best.id.Less(a.id) {
			best = a
		}
	}
	return best, true
}

// object is the generic representation of one of the four CRDT variants;
// kind selects which of the two storage shapes (entries for map/table,
// elements for list/text) is meaningful.
type object struct {
	id      op.OpId
	kind    op.Action // ActionMakeMap/MakeTable/MakeList/MakeText (root behaves as Map)
	entries map[string][]*assignment
	elements []*element
}

func newObject(id op.OpId, kind op.Action) *object {
	o := &object{id: id, kind: kind}
	if isMapLike(kind) {
		o.entries = make(map[string][]*assignment)
	}
	return o
}

func isMapLike(kind op.Action) bool {
	return kind == op.ActionMakeMap || kind == op.ActionMakeTable
}

func isListLike(kind op.Action) bool {
	return kind == op.ActionMakeList || kind == op.ActionMakeText
}

// removeIDs filters ids out of assignments, returning a new slice (never
// mutates the input slice's backing array in place, so readers holding a
// reference to the old slice during patch construction stay valid).
func removeIDs(assignments []*assignment, ids []op.OpId) []*assignment {
	if len(ids) == 0 {
		return assignments
	}
	remove := make(map[op.OpId]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	out := make([]*assignment, 0, len(assignments))
	for _, a := range assignments {
		if !remove[a.id] {
			out = append(out, a)
		}
	}
	return out
}

func containsID(ids []op.OpId, id op.OpId) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}
