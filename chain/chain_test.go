package chain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtendDoesNotMutateOriginal(t *testing.T) {
	base := Chain{}.Extend(GetOp(StringKey("a")))
	extended := base.Extend(GetOp(StringKey("b")))

	require.Equal(t, 1, base.Depth(), "base chain mutated")
	require.Equal(t, 2, extended.Depth())
}

func TestApplyOpCopiesArgs(t *testing.T) {
	args := []any{int64(1), int64(2)}
	op := ApplyOp(args)
	args[0] = int64(99)

	require.Equal(t, int64(1), op.Args[0], "ApplyOp must capture args at construction time, not a live reference")
}

func TestIndexKeyPanicsOnNegative(t *testing.T) {
	require.Panics(t, func() { IndexKey(-1) })
}

func TestIsAncestorOf(t *testing.T) {
	a := Chain{}.Extend(GetOp(StringKey("counter")))
	b := a.Extend(GetOp(StringKey("increment"))).Extend(ApplyOp([]any{int64(1)}))
	c := Chain{}.Extend(GetOp(StringKey("other")))

	require.True(t, a.IsAncestorOf(b))
	require.False(t, a.IsAncestorOf(a), "a chain is not a strict ancestor of itself")
	require.False(t, c.IsAncestorOf(b), "unrelated chain must not be reported as an ancestor")
}

func TestKeyAccessors(t *testing.T) {
	nameKey := StringKey("value")
	require.False(t, nameKey.IsIndex())
	require.Equal(t, "value", nameKey.NameOf())

	idxKey := IndexKey(3)
	require.True(t, idxKey.IsIndex())
	require.Equal(t, int64(3), idxKey.IndexOf())
}

func TestChainCloneIsIndependent(t *testing.T) {
	base := Chain{}.Extend(GetOp(StringKey("a")))
	clone := base.Clone()
	clone[0] = GetOp(StringKey("b"))

	require.Equal(t, "a", base[0].Key.NameOf(), "mutating a clone must not affect the original")
}
