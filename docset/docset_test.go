package docset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HerbCaudill/automerge/frontend"
	"github.com/HerbCaudill/automerge/op"
)

func TestSetDocNotifiesSubscribers(t *testing.T) {
	ds := NewDocSet()
	var notified DocId
	var notifiedDoc *frontend.Doc
	ds.OnChange(func(id DocId, d *frontend.Doc) {
		notified = id
		notifiedDoc = d
	})

	d := frontend.New(op.ActorId("a"), func() int64 { return 0 }, nil)
	ds.SetDoc("doc1", d)

	require.Equal(t, DocId("doc1"), notified)
	require.Same(t, d, notifiedDoc)
}

func TestGetDocAndIds(t *testing.T) {
	ds := NewDocSet()
	_, ok := ds.GetDoc("missing")
	require.False(t, ok, "GetDoc on an unset id should report false")

	d1 := frontend.New(op.ActorId("a"), func() int64 { return 0 }, nil)
	d2 := frontend.New(op.ActorId("b"), func() int64 { return 0 }, nil)
	ds.SetDoc("one", d1)
	ds.SetDoc("two", d2)

	got, ok := ds.GetDoc("one")
	require.True(t, ok)
	require.Same(t, d1, got)

	require.Len(t, ds.Ids(), 2)
}
