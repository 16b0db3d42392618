package op

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueEqual(t *testing.T) {
	cases := []struct {
		a, b Value
		want bool
	}{
		{Int(1), Int(1), true},
		{Int(1), Int(2), false},
		{Int(1), Float(1), false},
		{String("a"), String("a"), true},
		{String("a"), String("b"), false},
		{Bool(true), Bool(true), true},
		{Null(), Null(), true},
		{Counter(3), Counter(3), true},
		{Counter(3), Timestamp(3), false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Equal(c.a, c.b), "Equal(%v, %v)", c.a.GoString(), c.b.GoString())
	}
}

func TestCounterAdd(t *testing.T) {
	c := Counter(10)
	c2 := c.Add(5)
	require.Equal(t, int64(15), c2.Int())
	require.Equal(t, int64(10), c.Int(), "Add should not mutate the receiver")
}

func TestAddPanicsOnNonCounter(t *testing.T) {
	require.Panics(t, func() { Int(1).Add(1) })
}

func TestIsNumericDatatype(t *testing.T) {
	require.True(t, Counter(1).IsNumericDatatype())
	require.True(t, Timestamp(1).IsNumericDatatype())
	require.False(t, Int(1).IsNumericDatatype())
}
