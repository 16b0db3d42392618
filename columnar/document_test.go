package columnar

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HerbCaudill/automerge/change"
	"github.com/HerbCaudill/automerge/op"
)

func mkChange(actor op.ActorId, seq, startOp uint64, deps []change.Hash, key string) *change.Change {
	return &change.Change{
		Actor:   actor,
		Seq:     seq,
		StartOp: startOp,
		Deps:    deps,
		Ops: []op.Operation{
			{Action: op.ActionSet, Obj: op.Root, Key: op.MapKey(key), Value: op.Int(int64(startOp)), HasValue: true},
		},
	}
}

func TestCanonicalOrderIsTopological(t *testing.T) {
	root := mkChange("a", 1, 1, nil, "x")
	rootHash := root.Hash()
	child := mkChange("a", 2, 2, []change.Hash{rootHash}, "y")

	// feed them in reverse order; CanonicalOrder must still put deps first
	ordered, err := CanonicalOrder([]*change.Change{child, root})
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	require.Equal(t, rootHash, ordered[0].Hash(), "root (no deps) must be ordered before its dependent")
}

func TestCanonicalOrderRejectsMissingDep(t *testing.T) {
	orphan := mkChange("a", 2, 2, []change.Hash{change.HashOf([]byte("nowhere"))}, "y")
	_, err := CanonicalOrder([]*change.Change{orphan})
	require.Error(t, err, "expected an error for a dep outside the input set")
}

func TestEncodeDecodeDocumentRoundTrip(t *testing.T) {
	root := mkChange("a", 1, 1, nil, "x")
	child := mkChange("b", 1, 1, []change.Hash{root.Hash()}, "y")

	encoded, err := EncodeDocument([]*change.Change{root, child})
	require.NoError(t, err)

	doc, err := DecodeDocument(encoded)
	require.NoError(t, err)
	require.Len(t, doc.Changes, 2)
	require.Len(t, doc.Actors, 2)
	require.Equal(t, root.Hash(), doc.Changes[0].Hash())
	require.Equal(t, child.Hash(), doc.Changes[1].Hash(), "decoded changes should preserve canonical (topological) order")

	_, ok := doc.Index[root.Hash()]
	require.True(t, ok, "index should contain the root change's hash")
	_, ok = doc.Index[child.Hash()]
	require.True(t, ok, "index should contain the child change's hash")

	foundX, foundY := false, false
	for _, s := range doc.KeyDict {
		if s == "x" {
			foundX = true
		}
		if s == "y" {
			foundY = true
		}
	}
	require.True(t, foundX && foundY, "key dictionary should contain both map keys used in the document")
}

func TestDecodeDocumentRejectsBadMagic(t *testing.T) {
	_, err := DecodeDocument([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0})
	require.Error(t, err, "expected an error for bad magic bytes")
}
