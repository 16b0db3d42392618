package op

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpIdOrdering(t *testing.T) {
	a := OpId{Counter: 1, Actor: "a"}
	b := OpId{Counter: 1, Actor: "b"}
	c := OpId{Counter: 2, Actor: "a"}

	require.True(t, a.Less(b), "counter tie should be broken by actor")
	require.True(t, a.Less(c), "lower counter wins regardless of actor")
	require.False(t, c.Less(a))
	require.True(t, c.Greater(a))
}

func TestOpIdStringRoundTrip(t *testing.T) {
	id := OpId{Counter: 42, Actor: "abc123"}
	s := id.String()
	require.Equal(t, "42@abc123", s)

	got, err := ParseOpId(s)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestParseOpIdInvalid(t *testing.T) {
	_, err := ParseOpId("nope")
	require.Error(t, err, "missing '@' should be rejected")

	_, err = ParseOpId("x@actor")
	require.Error(t, err, "non-numeric counter should be rejected")
}

func TestRootIsZeroZero(t *testing.T) {
	require.Equal(t, uint64(0), Root.Counter)
	require.Equal(t, RootActor, Root.Actor)
	require.True(t, Root.IsRoot())
}

func TestIsNull(t *testing.T) {
	require.True(t, (OpId{}).IsNull())
	require.False(t, Root.IsNull(), "Root has an actor, so it is not the null sentinel despite counter 0")
}

func TestMaxOpId(t *testing.T) {
	ids := []OpId{
		{Counter: 3, Actor: "z"},
		{Counter: 5, Actor: "a"},
		{Counter: 5, Actor: "b"},
	}
	require.Equal(t, OpId{Counter: 5, Actor: "b"}, MaxOpId(ids))
}

func TestMaxOpIdPanicsOnEmpty(t *testing.T) {
	require.Panics(t, func() { MaxOpId(nil) })
}

func TestSortOpIds(t *testing.T) {
	ids := []OpId{
		{Counter: 2, Actor: "a"},
		{Counter: 1, Actor: "b"},
		{Counter: 1, Actor: "a"},
	}
	SortOpIds(ids)
	want := []OpId{
		{Counter: 1, Actor: "a"},
		{Counter: 1, Actor: "b"},
		{Counter: 2, Actor: "a"},
	}
	require.Equal(t, want, ids)
}
