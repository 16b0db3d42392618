package op

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyEqual(t *testing.T) {
	m1 := MapKey("x")
	m2 := MapKey("x")
	m3 := MapKey("y")
	require.True(t, m1.Equal(m2), "equal map keys should compare equal")
	require.False(t, m1.Equal(m3), "different map keys should not compare equal")

	e1 := ElemKey(OpId{Counter: 1, Actor: "a"})
	e2 := ElemKey(OpId{Counter: 1, Actor: "a"})
	require.True(t, e1.Equal(e2), "equal elem keys should compare equal")
	require.False(t, e1.Equal(m1), "elem key should never equal a map key")
	require.True(t, HeadKey().Elem().IsNull(), "HeadKey should wrap the null OpId")
}

func TestExpandOpsSingle(t *testing.T) {
	ops := []Operation{
		{Action: ActionSet, Obj: Root, Key: MapKey("k"), Value: Int(1), HasValue: true},
		{Action: ActionDel, Obj: Root, Key: MapKey("k")},
	}
	expanded := ExpandOps(5, "actor1", ops)
	require.Len(t, expanded, 2)
	require.Equal(t, OpId{Counter: 5, Actor: "actor1"}, expanded[0].ID)
	require.Equal(t, OpId{Counter: 6, Actor: "actor1"}, expanded[1].ID)
}

func TestExpandOpsMultiOp(t *testing.T) {
	// a run of 3 consecutive inserts after the list head
	multi := Operation{
		Action:  ActionSet,
		Obj:     OpId{Counter: 1, Actor: "a"},
		Key:     HeadKey(),
		Insert:  true,
		MultiOp: 3,
		Values:  []Value{Int(1), Int(2), Int(3)},
	}
	expanded := ExpandOps(10, "a", []Operation{multi})
	require.Len(t, expanded, 3)
	for i, e := range expanded {
		wantID := OpId{Counter: uint64(10 + i), Actor: "a"}
		require.Equal(t, wantID, e.ID, "expanded[%d].ID", i)
		require.True(t, e.Insert, "expanded[%d] should be an insert", i)
		require.Equal(t, int64(i+1), e.Value.Int(), "expanded[%d].Value", i)
	}
	// each successive element references the previous as its insertion point
	require.True(t, expanded[0].Key.Equal(HeadKey()), "first element should be inserted at the head")
	require.True(t, expanded[1].Key.Equal(ElemKey(expanded[0].ID)), "second element should reference the first by id")
	require.True(t, expanded[2].Key.Equal(ElemKey(expanded[1].ID)), "third element should reference the second by id")
	// only the first element of the run carries the original Pred
	require.Nil(t, expanded[1].Pred, "only the first expanded op in a multiOp run should carry Pred")
	require.Nil(t, expanded[2].Pred)
}

func TestTotalCounters(t *testing.T) {
	ops := []Operation{
		{Action: ActionSet},
		{MultiOp: 4},
		{Action: ActionDel},
	}
	require.Equal(t, uint64(6), TotalCounters(ops))
}
