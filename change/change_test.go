package change

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HerbCaudill/automerge/op"
)

func sampleChange() *Change {
	return &Change{
		Actor:   "actor1",
		Seq:     1,
		StartOp: 1,
		Time:    1000,
		Message: "init",
		Deps:    nil,
		Ops: []op.Operation{
			{
				Action:   op.ActionMakeMap,
				Obj:      op.Root,
				Key:      op.MapKey("profile"),
				Pred:     nil,
				HasValue: false,
			},
			{
				Action:   op.ActionSet,
				Obj:      op.OpId{Counter: 1, Actor: "actor1"},
				Key:      op.MapKey("name"),
				Value:    op.String("ada"),
				HasValue: true,
			},
		},
	}
}

func TestEncodeDecodeChunkRoundTrip(t *testing.T) {
	c := sampleChange()
	chunk := EncodeChunk(c)

	got, err := DecodeChunk(chunk)
	require.NoError(t, err)
	require.Equal(t, c.Actor, got.Actor)
	require.Equal(t, c.Seq, got.Seq)
	require.Equal(t, c.StartOp, got.StartOp)
	require.Equal(t, c.Time, got.Time)
	require.Equal(t, c.Message, got.Message)
	require.Len(t, got.Ops, len(c.Ops))
	for i := range c.Ops {
		require.Equal(t, c.Ops[i].Action, got.Ops[i].Action, "op[%d].Action", i)
		require.Equal(t, c.Ops[i].Obj, got.Ops[i].Obj, "op[%d].Obj", i)
		require.True(t, got.Ops[i].Key.Equal(c.Ops[i].Key), "op[%d].Key", i)
	}
}

func TestHashIsDeterministic(t *testing.T) {
	c1 := sampleChange()
	c2 := sampleChange()
	require.Equal(t, c1.Hash(), c2.Hash(), "two structurally identical changes must hash identically")
}

func TestHashChangesWithContent(t *testing.T) {
	c1 := sampleChange()
	c2 := sampleChange()
	c2.Message = "different message"
	require.NotEqual(t, c1.Hash(), c2.Hash(), "changing the message should change the hash")
}

func TestHashIgnoresDepOrder(t *testing.T) {
	h1 := HashOf([]byte("a"))
	h2 := HashOf([]byte("b"))
	c1 := sampleChange()
	c1.Deps = []Hash{h1, h2}
	c2 := sampleChange()
	c2.Deps = []Hash{h2, h1}
	require.Equal(t, c1.Hash(), c2.Hash(), "dep order should not affect the hash; deps are sorted before hashing")
}

func TestHashStringRoundTrip(t *testing.T) {
	h := sampleChange().Hash()
	s := h.String()
	require.Len(t, s, 64)

	got, err := ParseHash(s)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestSortHashes(t *testing.T) {
	a := HashOf([]byte("a"))
	b := HashOf([]byte("b"))
	c := HashOf([]byte("c"))
	hs := []Hash{c, a, b}
	SortHashes(hs)
	for i := 0; i+1 < len(hs); i++ {
		require.True(t, hs[i].Less(hs[i+1]) || hs[i] == hs[i+1], "hashes not sorted ascending: %v", hs)
	}
}

func TestNumOpsAndEndOp(t *testing.T) {
	c := sampleChange()
	require.Equal(t, uint64(2), c.NumOps())
	require.Equal(t, c.StartOp+2, c.EndOp())
}

func TestExpandedOpsMatchesPackageLevelExpand(t *testing.T) {
	c := sampleChange()
	expanded := c.ExpandedOps()
	require.Len(t, expanded, len(c.Ops))
	require.Equal(t, op.OpId{Counter: 1, Actor: "actor1"}, expanded[0].ID)
}
