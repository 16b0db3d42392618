package opset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HerbCaudill/automerge/change"
	"github.com/HerbCaudill/automerge/op"
)

func mustApply(t *testing.T, s *OpSet, c *change.Change) *Patch {
	t.Helper()
	p, err := s.Apply(c)
	require.NoError(t, err)
	return p
}

func TestApplyIdempotent(t *testing.T) {
	s := New(nil)
	c := &change.Change{
		Actor: "a", Seq: 1, StartOp: 1,
		Ops: []op.Operation{
			{Action: op.ActionSet, Obj: op.Root, Key: op.MapKey("x"), Value: op.Int(1), HasValue: true},
		},
	}
	mustApply(t, s, c)
	v, ok := s.GetValue(op.Root, "x")
	require.True(t, ok)
	require.Equal(t, int64(1), v.Int())

	// applying the same change again must be a no-op, not an error or a
	// double-counted effect (spec §8 idempotence)
	p2, err := s.Apply(c)
	require.NoError(t, err)
	require.Empty(t, p2.Objects, "re-applying an already-applied change produced a non-empty patch: %+v", p2)

	v, ok = s.GetValue(op.Root, "x")
	require.True(t, ok)
	require.Equal(t, int64(1), v.Int())
}

func TestLastWriteWinsByOpId(t *testing.T) {
	s := New(nil)
	c1 := &change.Change{Actor: "a", Seq: 1, StartOp: 1, Ops: []op.Operation{
		{Action: op.ActionSet, Obj: op.Root, Key: op.MapKey("x"), Value: op.Int(1), HasValue: true},
	}}
	mustApply(t, s, c1)

	// a concurrent set from actor "b" with the same (empty) pred as the first
	// set; the one with the larger OpId wins
	c2 := &change.Change{Actor: "b", Seq: 1, StartOp: 1, Ops: []op.Operation{
		{Action: op.ActionSet, Obj: op.Root, Key: op.MapKey("x"), Value: op.Int(2), HasValue: true},
	}}
	mustApply(t, s, c2)

	winner := op.MaxOpId([]op.OpId{{Counter: 1, Actor: "a"}, {Counter: 1, Actor: "b"}})
	v, _ := s.GetValue(op.Root, "x")
	wantVal := int64(1)
	if winner.Actor == "b" {
		wantVal = 2
	}
	require.Equal(t, wantVal, v.Int())

	conflicts := s.GetConflicts(op.Root, "x")
	require.Len(t, conflicts, 2)
}

func TestDelRemovesKey(t *testing.T) {
	s := New(nil)
	c1 := &change.Change{Actor: "a", Seq: 1, StartOp: 1, Ops: []op.Operation{
		{Action: op.ActionSet, Obj: op.Root, Key: op.MapKey("x"), Value: op.Int(1), HasValue: true},
	}}
	mustApply(t, s, c1)
	c2 := &change.Change{Actor: "a", Seq: 2, StartOp: 2, Ops: []op.Operation{
		{Action: op.ActionDel, Obj: op.Root, Key: op.MapKey("x"), Pred: []op.OpId{{Counter: 1, Actor: "a"}}},
	}}
	mustApply(t, s, c2)

	_, ok := s.GetValue(op.Root, "x")
	require.False(t, ok, "GetValue(x) should report absent after delete")

	keys := s.Keys(op.Root)
	require.NotContains(t, keys, "x")
}

func TestMakeMapNesting(t *testing.T) {
	s := New(nil)
	childID := op.OpId{Counter: 1, Actor: "a"}
	c := &change.Change{Actor: "a", Seq: 1, StartOp: 1, Ops: []op.Operation{
		{Action: op.ActionMakeMap, Obj: op.Root, Key: op.MapKey("profile"), Child: &childID},
	}}
	mustApply(t, s, c)

	kind, ok := s.ObjectKind(childID)
	require.True(t, ok)
	require.Equal(t, op.ActionMakeMap, kind)

	got, ok := s.ChildAt(op.Root, "profile")
	require.True(t, ok)
	require.Equal(t, childID, got)
}

func TestListInsertOrderAndRemove(t *testing.T) {
	s := New(nil)
	listID := op.OpId{Counter: 1, Actor: "a"}
	c := &change.Change{Actor: "a", Seq: 1, StartOp: 1, Ops: []op.Operation{
		{Action: op.ActionMakeList, Obj: op.Root, Key: op.MapKey("items"), Child: &listID},
	}}
	mustApply(t, s, c)

	e1 := op.OpId{Counter: 1, Actor: "b"}
	c2 := &change.Change{Actor: "b", Seq: 1, StartOp: 1, Ops: []op.Operation{
		{Action: op.ActionSet, Obj: listID, Key: op.HeadKey(), Insert: true, Value: op.String("x"), HasValue: true},
		{Action: op.ActionSet, Obj: listID, Key: op.ElemKey(e1), Insert: true, Value: op.String("y"), HasValue: true},
	}}
	mustApply(t, s, c2)

	require.Equal(t, 2, s.ListLen(listID))
	v0, _ := s.ListValueAt(listID, 0)
	v1, _ := s.ListValueAt(listID, 1)
	require.Equal(t, "x", v0.String())
	require.Equal(t, "y", v1.String())

	c3 := &change.Change{Actor: "a", Seq: 2, StartOp: 2, Ops: []op.Operation{
		{Action: op.ActionDel, Obj: listID, Key: op.ElemKey(e1), Pred: []op.OpId{e1}},
	}}
	mustApply(t, s, c3)
	require.Equal(t, 1, s.ListLen(listID))
	v0, _ = s.ListValueAt(listID, 0)
	require.Equal(t, "y", v0.String())
}

func TestListInsertOrderIndependentOfApplicationOrder(t *testing.T) {
	// A = insert@head, id 5@a, "A"
	// B = insert-after-A, id 3@b, "B" (causally depends on A)
	// C = insert@head, id 4@c, "C" (independent of both)
	// Canonical RGA order (preorder, siblings of head descending by id) is
	// [A, B, C]: A (id 5) outranks C (id 4) as a child of head, and B is A's
	// own child so it sits inside A's subtree, ahead of C. Both dependency-
	// respecting application orders below must produce that same list.
	listID := op.OpId{Counter: 1, Actor: "a"}
	makeList := &change.Change{Actor: "a", Seq: 1, StartOp: 1, Ops: []op.Operation{
		{Action: op.ActionMakeList, Obj: op.Root, Key: op.MapKey("items"), Child: &listID},
	}}
	idA := op.OpId{Counter: 5, Actor: "a"}
	opA := &change.Change{Actor: "a", Seq: 2, StartOp: 5, Ops: []op.Operation{
		{Action: op.ActionSet, Obj: listID, Key: op.HeadKey(), Insert: true, Value: op.String("A"), HasValue: true},
	}}
	opB := &change.Change{Actor: "b", Seq: 1, StartOp: 3, Ops: []op.Operation{
		{Action: op.ActionSet, Obj: listID, Key: op.ElemKey(idA), Insert: true, Value: op.String("B"), HasValue: true},
	}}
	opC := &change.Change{Actor: "c", Seq: 1, StartOp: 4, Ops: []op.Operation{
		{Action: op.ActionSet, Obj: listID, Key: op.HeadKey(), Insert: true, Value: op.String("C"), HasValue: true},
	}}

	want := []string{"A", "B", "C"}

	acb := New(nil)
	mustApply(t, acb, makeList)
	mustApply(t, acb, opA)
	mustApply(t, acb, opC)
	mustApply(t, acb, opB)

	abc := New(nil)
	mustApply(t, abc, makeList)
	mustApply(t, abc, opA)
	mustApply(t, abc, opB)
	mustApply(t, abc, opC)

	for _, s := range []*OpSet{acb, abc} {
		require.Equal(t, len(want), s.ListLen(listID))
		for i, w := range want {
			v, _ := s.ListValueAt(listID, i)
			require.Equal(t, w, v.String())
		}
	}
}

func TestCounterAppliesDeltas(t *testing.T) {
	s := New(nil)
	c1 := &change.Change{Actor: "a", Seq: 1, StartOp: 1, Ops: []op.Operation{
		{Action: op.ActionSet, Obj: op.Root, Key: op.MapKey("n"), Value: op.Counter(10), HasValue: true},
	}}
	mustApply(t, s, c1)
	c2 := &change.Change{Actor: "a", Seq: 2, StartOp: 2, Ops: []op.Operation{
		{Action: op.ActionInc, Obj: op.Root, Key: op.MapKey("n"), Value: op.Int(5), HasValue: true,
			Pred: []op.OpId{{Counter: 1, Actor: "a"}}},
	}}
	mustApply(t, s, c2)
	v, ok := s.GetValue(op.Root, "n")
	require.True(t, ok)
	require.Equal(t, int64(15), v.Int())
}
