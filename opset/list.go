package opset

import (
	"github.com/HerbCaudill/automerge/internal/verr"
	"github.com/HerbCaudill/automerge/op"
)

// applyListOp handles set/del/makeX targeting a List/Text object (spec
// §4.2 "List / Text" and step 4 of "Applying an op").
func (s *OpSet) applyListOp(obj *object, eop op.ExpandedOp, patch *Patch) error {
	if eop.Insert {
		return s.insertElement(obj, eop, patch)
	}
	return s.updateElement(obj, eop, patch)
}

// insertElement places a new element immediately after eop.Key's
// reference elemId using the RGA ordering rule from spec §4.2: among
// elements sharing the same reference, order by OpId descending.
func (s *OpSet) insertElement(obj *object, eop op.ExpandedOp, patch *Patch) error {
	ref := eop.Key.Elem()

	start := 0
	if !ref.IsNull() {
		idx := indexOf(obj.elements, ref)
		if idx < 0 {
			return verr.New(verr.InvalidArgument, "opset.insertElement",
				"insert references unknown element "+ref.String(), nil)
		}
		start = idx + 1
	}

	// Among ref's direct children (siblings in RGA's descending-by-id order),
	// skip past every sibling whose id beats the new element's, so it is
	// inserted right before the first sibling it outranks. A sibling that
	// wins isn't just one slot to step over: its own descendants (inserted
	// at it, or at one of its descendants, and so on) occupy the elements
	// immediately following it in this preorder array, and all of them must
	// be skipped too, or the new element gets wedged inside that subtree
	// instead of after it (spec §8 convergence/determinism).
	j := start
	for j < len(obj.elements) && obj.elements[j].origin == ref && eop.ID.Less(obj.elements[j].id) {
		j = subtreeEnd(obj.elements, j)
	}

	a := &assignment{id: eop.ID, value: eop.Value, hasValue: eop.HasValue}
	if eop.Action.IsMake() {
		childID := eop.ID
		a.child = &childID
		s.objects[childID] = newObject(childID, eop.Action)
	} else if eop.Child != nil {
		a.child = eop.Child
	}

	el := &element{id: eop.ID, origin: ref, assignments: []*assignment{a}}

	obj.elements = append(obj.elements, nil)
	copy(obj.elements[j+1:], obj.elements[j:])
	obj.elements[j] = el

	d := patch.objDiff(obj.id, obj.kind)
	d.Edits = append(d.Edits, ListEdit{
		Kind:   EditInsert,
		Index:  visibleIndex(obj.elements, j),
		ElemID: eop.ID,
		Value:  *assignmentToValueDiff(a),
	})
	return nil
}

// updateElement handles a non-insert set/del/inc... targeting an existing
// element by its elemId (spec §4.2 step 2, applied to a list position).
func (s *OpSet) updateElement(obj *object, eop op.ExpandedOp, patch *Patch) error {
	target := eop.Key.Elem()
	idx := indexOf(obj.elements, target)
	if idx < 0 {
		return verr.New(verr.InvalidArgument, "opset.updateElement",
			"op targets unknown element "+target.String(), nil)
	}
	el := obj.elements[idx]
	remaining := removeIDs(el.assignments, eop.Pred)

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
	el.assignments = remaining

	d := patch.objDiff(obj.id, obj.kind)
	vIdx := visibleIndex(obj.elements, idx)
	if !el.visible() {
		d.Edits = append(d.Edits, ListEdit{Kind: EditRemove, Index: vIdx, ElemID: target, Count: 1})
		return nil
	}
	w, _ := winner(el.assignments)
	d.Edits = append(d.Edits, ListEdit{
		Kind:   EditUpdate,
		Index:  vIdx,
		ElemID: target,
		Value:  *assignmentToValueDiff(w),
	})
	return nil
}
