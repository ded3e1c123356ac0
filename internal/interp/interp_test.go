package interp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bosley/sxs/internal/interp"
	"github.com/bosley/sxs/internal/value"
)

func run(t *testing.T, src string) value.Value {
	t.Helper()
	root, perr := value.Parse(src)
	require.Nil(t, perr, "parse %q", src)
	in := interp.New(nil, nil, nil, ".", nil)
	result, err := in.Eval(root)
	require.NoError(t, err, "eval %q", src)
	return result
}

func TestEvalDefAndLookup(t *testing.T) {
	v := run(t, "[(def x 42) x]")
	require.Equal(t, value.KindInteger, v.Kind())
	require.Equal(t, int64(42), v.AsInt())
}

func TestEvalIf(t *testing.T) {
	require.Equal(t, int64(10), run(t, "(if 1 10 20)").AsInt())
	require.Equal(t, int64(20), run(t, "(if 0 10 20)").AsInt())
}

func TestEvalFnAndCall(t *testing.T) {
	v := run(t, "[(def sq (fn ((a :int)) :int (eq a a))) (sq 5)]")
	require.Equal(t, value.KindInteger, v.Kind())
	require.Equal(t, int64(1), v.AsInt(), "eq self should be 1")
}

func TestEvalDoLoop(t *testing.T) {
	v := run(t, "(do (if (eq $iterations 3) (done 99) 0))")
	require.Equal(t, value.KindInteger, v.Kind())
	require.Equal(t, int64(99), v.AsInt(), "expected 99 once $iterations reaches 3")
}

func TestEvalAssert(t *testing.T) {
	require.Equal(t, int64(1), run(t, "(assert 1)").AsInt())
	require.Equal(t, int64(0), run(t, "(assert 0)").AsInt())
}

func TestEvalAtOnList(t *testing.T) {
	v := run(t, "(at 1 {10 20 30})")
	require.Equal(t, int64(20), v.AsInt())
}

func TestEvalAtOnString(t *testing.T) {
	v := run(t, `(at 1 "abc")`)
	require.Equal(t, value.KindRune, v.Kind())
	require.Equal(t, rune('b'), v.AsRune())
}

func TestEvalTryConvertsErrorToValue(t *testing.T) {
	v := run(t, "(try (undefined-function 1 2))")
	require.Equal(t, value.KindError, v.Kind())
}

func TestEvalUnknownCallableIsGoError(t *testing.T) {
	root, perr := value.Parse("(undefined-function 1 2)")
	require.Nil(t, perr)
	in := interp.New(nil, nil, nil, ".", nil)
	_, err := in.Eval(root)
	require.Error(t, err, "calling an unknown function directly (outside try) should fail")
}

func TestEvalMatch(t *testing.T) {
	v := run(t, "(match 2 (1 10) (2 20) (_ 0))")
	require.Equal(t, int64(20), v.AsInt(), "matching arm should return 20")

	v = run(t, "(match 99 (1 10) (2 20) (_ 0))")
	require.Equal(t, int64(0), v.AsInt(), "default arm should return 0")
}

func TestEvalCast(t *testing.T) {
	v := run(t, "(cast 3.7 :int)")
	require.Equal(t, value.KindInteger, v.Kind())
	require.Equal(t, int64(3), v.AsInt())
}

func TestEvalApply(t *testing.T) {
	v := run(t, "[(def f (fn ((a :int) (b :int)) :int (eq a b))) (apply f {1 1})]")
	require.Equal(t, value.KindInteger, v.Kind())
	require.Equal(t, int64(1), v.AsInt())
}

func TestEvalExport(t *testing.T) {
	root, perr := value.Parse("[(def x 5) (export x)]")
	require.Nil(t, perr)
	in := interp.New(nil, nil, nil, ".", nil)
	_, err := in.Eval(root)
	require.NoError(t, err)

	exports := in.Exports()
	v, ok := exports["x"]
	require.True(t, ok, "expected x to be exported")
	require.Equal(t, int64(5), v.AsInt())
}
