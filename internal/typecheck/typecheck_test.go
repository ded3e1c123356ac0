package typecheck_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bosley/sxs/internal/typecheck"
	"github.com/bosley/sxs/internal/value"
)

func check(t *testing.T, src string) (map[string]typecheck.TypeInfo, error) {
	t.Helper()
	root, perr := value.Parse(src)
	require.Nil(t, perr, "parse %q", src)
	c := typecheck.New(nil, ".", nil)
	return c.Check(root)
}

func TestCheckDefAndLookup(t *testing.T) {
	_, err := check(t, "[(def x 42) (def y (if x 1 2))]")
	require.NoError(t, err)
}

func TestCheckDefRedefinitionFails(t *testing.T) {
	_, err := check(t, "[(def x 1) (def x 2)]")
	require.Error(t, err, "expected redefinition error")
}

func TestCheckFnArityMismatch(t *testing.T) {
	_, err := check(t, "[(def f (fn ((a :int) (b :int)) :int (eq a b))) (f 1)]")
	require.Error(t, err, "expected arity mismatch error")
}

func TestCheckFnReturnTypeMismatch(t *testing.T) {
	_, err := check(t, `(fn ((a :int)) :str a)`)
	require.Error(t, err, "expected return type mismatch error")
}

func TestCheckDoneOutsideLoopFails(t *testing.T) {
	_, err := check(t, "(done 1)")
	require.Error(t, err, "expected done-outside-loop error")
}

func TestCheckDoWithDone(t *testing.T) {
	_, err := check(t, "(do (done 42))")
	require.NoError(t, err)
}

func TestCheckAtRequiresIntegerIndex(t *testing.T) {
	_, err := check(t, `(at "x" (1 2 3))`)
	require.Error(t, err, "expected non-integer index error")
}

func TestCheckAtOnList(t *testing.T) {
	_, err := check(t, "(at 0 {1 2 3})")
	require.NoError(t, err)
}

func TestCheckExportUndefinedFails(t *testing.T) {
	_, err := check(t, "(export ghost)")
	require.Error(t, err, "expected export-of-undefined error")
}

func TestCheckExportRecordsExports(t *testing.T) {
	exports, err := check(t, "[(def x 42) (export x)]")
	require.NoError(t, err)
	info, ok := exports["x"]
	require.True(t, ok, "expected x to be exported")
	require.Equal(t, value.KindInteger, info.Kind)
}

func TestCheckDefineFormRegistersCompositeType(t *testing.T) {
	_, err := check(t, `#(define-form point (:int :int))`)
	require.NoError(t, err)
}
