package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bosley/sxs/internal/value"
)

func mustParse(t *testing.T, src string) value.Value {
	t.Helper()
	v, err := value.Parse(src)
	require.Nil(t, err, "parse %q", src)
	return v
}

func TestParseAtoms(t *testing.T) {
	v := mustParse(t, "42")
	require.Equal(t, value.KindInteger, v.Kind())
	require.Equal(t, int64(42), v.AsInt())

	v = mustParse(t, "-7")
	require.Equal(t, value.KindInteger, v.Kind())
	require.Equal(t, int64(-7), v.AsInt())

	v = mustParse(t, "3.14")
	require.Equal(t, value.KindReal, v.Kind())
	require.Equal(t, 3.14, v.AsReal())

	v = mustParse(t, "1.5e2")
	require.Equal(t, value.KindReal, v.Kind())
	require.Equal(t, 150.0, v.AsReal())

	v = mustParse(t, "foo")
	require.Equal(t, value.KindSymbol, v.Kind())
	require.Equal(t, "foo", v.AsSymbol())

	v = mustParse(t, "-bar")
	require.Equal(t, value.KindSymbol, v.Kind(), "sign-only prefix isn't numeric")
	require.Equal(t, "-bar", v.AsSymbol())
}

func TestParseString(t *testing.T) {
	v := mustParse(t, `"hello"`)
	require.Equal(t, value.KindString, v.Kind())
	s := v.Str()
	require.Equal(t, 5, s.Size())
	require.Equal(t, "hello", s.String())
}

func TestParseUnclosedString(t *testing.T) {
	_, err := value.Parse(`"oops`)
	require.NotNil(t, err)
	require.Equal(t, value.ErrUnclosedString, err.Code)
}

func TestParseParenList(t *testing.T) {
	v := mustParse(t, "(add 1 2)")
	require.Equal(t, value.KindParenList, v.Kind())
	l := v.List()
	require.Equal(t, 3, l.Size())
	require.Equal(t, "add", l.At(0).AsSymbol())
	require.Equal(t, int64(1), l.At(1).AsInt())
	require.Equal(t, int64(2), l.At(2).AsInt())
}

func TestParseBracketAndBraceLists(t *testing.T) {
	v := mustParse(t, "[(def x 1) (def y 2)]")
	require.Equal(t, value.KindBracketList, v.Kind())
	require.Equal(t, 2, v.List().Size())

	b := mustParse(t, "{1 2 3}")
	require.Equal(t, value.KindBraceList, b.Kind())
	require.Equal(t, 3, b.List().Size())
}

func TestParseQuoteAndError(t *testing.T) {
	v := mustParse(t, "'42")
	require.Equal(t, value.KindSome, v.Kind())
	inner := v.Inner()
	require.Equal(t, value.KindInteger, inner.Kind())
	require.Equal(t, int64(42), inner.AsInt())

	e := mustParse(t, `@"boom"`)
	require.Equal(t, value.KindError, e.Kind())
	innerErr := e.Inner()
	require.Equal(t, value.KindString, innerErr.Kind())
	require.Equal(t, "boom", innerErr.Str().String())
}

func TestParseQuoteRequiresObject(t *testing.T) {
	_, err := value.Parse("'")
	require.NotNil(t, err)
	require.Equal(t, value.ErrOperatorRequiresObject, err.Code)
}

func TestParseUnclosedLists(t *testing.T) {
	cases := []struct {
		src  string
		code value.ErrorCode
	}{
		{"(foo", value.ErrUnclosedParenList},
		{"[foo", value.ErrUnclosedBracketList},
		{"{foo", value.ErrUnclosedBraceList},
	}
	for _, c := range cases {
		_, err := value.Parse(c.src)
		require.NotNilf(t, err, "src %q", c.src)
		require.Equalf(t, c.code, err.Code, "src %q", c.src)
	}
}

func TestParseComments(t *testing.T) {
	v := mustParse(t, "; a leading comment\n(add 1 2) ; trailing\n")
	require.Equal(t, value.KindParenList, v.Kind())
	require.Equal(t, 3, v.List().Size())
}

func TestRepeatedSymbolAtomsGetDistinctUnits(t *testing.T) {
	v := mustParse(t, "(foo foo foo)")
	l := v.List()
	first := l.At(0)
	second := l.At(1)
	require.Equal(t, first.AsSymbol(), second.AsSymbol())
	require.NotEqual(t, first.RootOffset(), second.RootOffset(), "repeated atoms should get distinct offsets")
}

func TestClone(t *testing.T) {
	v := mustParse(t, "(add 1 (mul 2 3))")
	cloned := v.Clone()

	require.NotSame(t, v.Arena(), cloned.Arena(), "Clone should allocate a new arena")
	require.Equal(t, value.KindParenList, cloned.Kind())
	require.Equal(t, 3, cloned.List().Size())

	nested := cloned.List().At(2)
	require.Equal(t, value.KindParenList, nested.Kind())
	require.Equal(t, 3, nested.List().Size())
	require.Equal(t, "mul", nested.List().At(0).AsSymbol())
}

func TestEmptyValueIsNone(t *testing.T) {
	var v value.Value
	require.Equal(t, value.KindNone, v.Kind())
	require.False(t, v.HasData())
}
