package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bosley/sxs/internal/value"
)

func TestBuilderPrimitives(t *testing.T) {
	b := value.NewBuilder()

	v := b.Int(7)
	require.Equal(t, value.KindInteger, v.Kind())
	require.Equal(t, int64(7), v.AsInt())

	v = b.Real(2.5)
	require.Equal(t, value.KindReal, v.Kind())
	require.Equal(t, 2.5, v.AsReal())

	v = b.String("hi")
	require.Equal(t, value.KindString, v.Kind())
	require.Equal(t, "hi", v.Str().String())

	v = b.Aberrant(99)
	require.Equal(t, value.KindAberrant, v.Kind())
}

func TestBuilderAdoptsAcrossArenas(t *testing.T) {
	parsed, err := value.Parse("(add 1 2)")
	require.Nil(t, err)

	b := value.NewBuilder()
	wrapped := b.Some(parsed)

	require.NotSame(t, parsed.Arena(), wrapped.Arena(), "Some should adopt into the builder's own arena")
	inner := wrapped.Inner()
	require.Equal(t, value.KindParenList, inner.Kind())
	require.Equal(t, 3, inner.List().Size())
	require.Equal(t, "add", inner.List().At(0).AsSymbol())
}

func TestBuilderListConstruction(t *testing.T) {
	b := value.NewBuilder()
	list := b.ParenList([]value.Value{b.Int(1), b.Int(2), b.Int(3)})
	require.Equal(t, value.KindParenList, list.Kind())
	require.Equal(t, 3, list.List().Size())
	require.Equal(t, int64(3), list.List().At(2).AsInt())
}
