package frontend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HerbCaudill/automerge/change"
	"github.com/HerbCaudill/automerge/op"
)

func newTestDoc(actor op.ActorId) *Doc {
	return New(actor, func() int64 { return 0 }, nil)
}

func TestMapSetAndGet(t *testing.T) {
	d := newTestDoc("a")
	_, err := d.Change("set name", func(r *Recorder) error {
		r.SetKey(Root(), "name", op.String("ada"))
		return nil
	})
	require.NoError(t, err)

	v, ok := d.GetValue(Root(), "name")
	require.True(t, ok)
	require.Equal(t, "ada", v.String())
}

func TestEmptyMutatorProducesNoChange(t *testing.T) {
	d := newTestDoc("a")
	c, err := d.Change("noop", func(r *Recorder) error { return nil })
	require.NoError(t, err)
	require.Nil(t, c, "a mutator that records no ops should produce a nil change")
	require.Empty(t, d.Heads(), "no change should have been applied to history")
}

func TestConcurrentConflictingSetsProduceConflictSet(t *testing.T) {
	a := newTestDoc("a")
	b := newTestDoc("b")

	_, err := a.Change("a sets x", func(r *Recorder) error {
		r.SetKey(Root(), "x", op.Int(1))
		return nil
	})
	require.NoError(t, err)
	_, err = b.Change("b sets x", func(r *Recorder) error {
		r.SetKey(Root(), "x", op.Int(2))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, a.ApplyRemoteChanges([]*change.Change{b.GetLastLocalChange()}))
	require.NoError(t, b.ApplyRemoteChanges([]*change.Change{a.GetLastLocalChange()}))

	av, _ := a.GetValue(Root(), "x")
	bv, _ := b.GetValue(Root(), "x")
	require.Equal(t, av.Int(), bv.Int(), "replicas diverged on winning value")

	conflicts := a.GetConflicts(Root(), "x")
	require.Len(t, conflicts, 2)
}

func TestCounterIncrements(t *testing.T) {
	d := newTestDoc("a")
	_, err := d.Change("make counter", func(r *Recorder) error {
		r.SetKey(Root(), "likes", op.Counter(0))
		return nil
	})
	require.NoError(t, err)
	_, err = d.Change("bump twice", func(r *Recorder) error {
		r.Inc(Root(), "likes", 1)
		r.Inc(Root(), "likes", 4)
		return nil
	})
	require.NoError(t, err)

	v, ok := d.GetValue(Root(), "likes")
	require.True(t, ok)
	require.Equal(t, int64(5), v.Int())
}

func TestListInsertAndDelete(t *testing.T) {
	d := newTestDoc("a")
	var list op.OpId
	_, err := d.Change("make list", func(r *Recorder) error {
		list = r.MakeList(Root(), "items")
		r.InsertAt(list, 0, op.String("a"))
		r.InsertAt(list, 1, op.String("b"))
		r.InsertAt(list, 2, op.String("c"))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, d.ListLen(list))

	_, err = d.Change("delete middle", func(r *Recorder) error {
		r.DeleteIndex(list, 1)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, d.ListLen(list))

	v0, _ := d.ListValueAt(list, 0)
	v1, _ := d.ListValueAt(list, 1)
	require.Equal(t, "a", v0.String())
	require.Equal(t, "c", v1.String())
}

func TestOfflineBidirectionalMergeConverges(t *testing.T) {
	a := newTestDoc("a")
	b := newTestDoc("b")

	_, err := a.Change("init", func(r *Recorder) error {
		r.SetKey(Root(), "title", op.String("draft"))
		return nil
	})
	require.NoError(t, err)
	shared := a.GetLastLocalChange()
	require.NoError(t, b.ApplyRemoteChanges([]*change.Change{shared}))

	// a and b now diverge independently while offline from each other
	_, err = a.Change("a edits", func(r *Recorder) error {
		r.SetKey(Root(), "author", op.String("alice"))
		return nil
	})
	require.NoError(t, err)
	_, err = b.Change("b edits", func(r *Recorder) error {
		r.SetKey(Root(), "reviewer", op.String("bob"))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, a.ApplyRemoteChanges([]*change.Change{b.GetLastLocalChange()}))
	require.NoError(t, b.ApplyRemoteChanges([]*change.Change{a.GetLastLocalChange()}))

	for _, key := range []string{"title", "author", "reviewer"} {
		av, aok := a.GetValue(Root(), key)
		bv, bok := b.GetValue(Root(), key)
		require.Equal(t, aok, bok, "key %q presence diverged", key)
		require.Equal(t, av.String(), bv.String(), "key %q diverged", key)
	}

	require.Equal(t, len(a.Heads()), len(b.Heads()), "heads diverged after full sync")
}

func TestOfflineConflictOnSameKeyConverges(t *testing.T) {
	a := newTestDoc("a")
	b := newTestDoc("b")

	_, err := a.Change("init", func(r *Recorder) error {
		r.SetKey(Root(), "status", op.String("draft"))
		return nil
	})
	require.NoError(t, err)
	shared := a.GetLastLocalChange()
	require.NoError(t, b.ApplyRemoteChanges([]*change.Change{shared}))

	_, err = a.Change("a publishes", func(r *Recorder) error {
		r.SetKey(Root(), "status", op.String("published"))
		return nil
	})
	require.NoError(t, err)
	_, err = b.Change("b archives", func(r *Recorder) error {
		r.SetKey(Root(), "status", op.String("archived"))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, a.ApplyRemoteChanges([]*change.Change{b.GetLastLocalChange()}))
	require.NoError(t, b.ApplyRemoteChanges([]*change.Change{a.GetLastLocalChange()}))

	av, _ := a.GetValue(Root(), "status")
	bv, _ := b.GetValue(Root(), "status")
	require.Equal(t, av.String(), bv.String(), "replicas diverged on winning value")
	require.Len(t, a.GetConflicts(Root(), "status"), 2)
}

func TestDiffReturnsOnlyDeltaPatches(t *testing.T) {
	d := newTestDoc("a")
	_, err := d.Change("one", func(r *Recorder) error {
		r.SetKey(Root(), "a", op.Int(1))
		return nil
	})
	require.NoError(t, err)
	checkpoint := d.Heads()

	_, err = d.Change("two", func(r *Recorder) error {
		r.SetKey(Root(), "b", op.Int(2))
		return nil
	})
	require.NoError(t, err)

	patch, err := d.Diff(checkpoint)
	require.NoError(t, err)

	rootDiff, ok := patch.Objects[Root()]
	require.True(t, ok, "Diff should report a patch against the root object")

	_, ok = rootDiff.Map["b"]
	require.True(t, ok, "Diff should include the key changed after the checkpoint")

	_, ok = rootDiff.Map["a"]
	require.False(t, ok, "Diff should not include the key set before the checkpoint")
}

func TestMergeCombinesHistories(t *testing.T) {
	a := newTestDoc("a")
	b := newTestDoc("b")

	_, err := a.Change("a sets x", func(r *Recorder) error {
		r.SetKey(Root(), "x", op.Int(1))
		return nil
	})
	require.NoError(t, err)
	_, err = b.Change("b sets y", func(r *Recorder) error {
		r.SetKey(Root(), "y", op.Int(2))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, a.Merge(b))

	v, ok := a.GetValue(Root(), "y")
	require.True(t, ok)
	require.Equal(t, int64(2), v.Int())
}

func TestMergeRejectsActorCollision(t *testing.T) {
	a := newTestDoc("shared")
	b := newTestDoc("shared")

	_, err := a.Change("a's own history", func(r *Recorder) error {
		r.SetKey(Root(), "x", op.Int(1))
		return nil
	})
	require.NoError(t, err)
	_, err = b.Change("b's unrelated history under the same actor id", func(r *Recorder) error {
		r.SetKey(Root(), "x", op.Int(999))
		return nil
	})
	require.NoError(t, err)

	require.Error(t, a.Merge(b), "expected an error merging two histories that diverge under a shared actor id")
}
