package sxsrt_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bosley/sxs/internal/value"
	"github.com/bosley/sxs/pkg/sxsrt"
)

func newRuntime(t *testing.T) *sxsrt.Runtime {
	t.Helper()
	return sxsrt.New(sxsrt.Options{WorkingDirectory: t.TempDir()})
}

func TestRunSourceArithmeticAndLambda(t *testing.T) {
	rt := newRuntime(t)
	result, err := rt.RunSource(`[
		(def square (fn ((x :int)) :int (eq x x)))
		(square 4)
	]`)
	require.NoError(t, err)
	require.Equal(t, value.KindInteger, result.Kind())
	require.Equal(t, int64(1), result.AsInt())
}

func TestRunSourceDoDoneLoop(t *testing.T) {
	rt := newRuntime(t)
	result, err := rt.RunSource(`(do (if (eq $iterations 5) (done $iterations) 0))`)
	require.NoError(t, err)
	require.Equal(t, int64(5), result.AsInt())
}

func TestRunSourceTryRecover(t *testing.T) {
	rt := newRuntime(t)
	result, err := rt.RunSource(`[
		(def outcome (try (undefined-thing 1)))
		(recover outcome)
	]`)
	require.NoError(t, err)
	require.Equal(t, value.KindError, result.Kind())
}

func TestRunSourceMatch(t *testing.T) {
	rt := newRuntime(t)
	result, err := rt.RunSource(`(match 3 (1 "one") (3 "three") (_ "?"))`)
	require.NoError(t, err)
	require.Equal(t, value.KindString, result.Kind())
	require.Equal(t, "three", result.Str().String())
}

func TestRunSourceTypeErrorRejected(t *testing.T) {
	rt := newRuntime(t)
	_, err := rt.RunSource(`(fn ((a :int)) :str a)`)
	require.Error(t, err, "expected a type error for mismatched return kind")
}

func TestRunFileAndImport(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "lib.sxs")
	err := os.WriteFile(libPath, []byte(`[
		(def double (fn ((x :int)) :int (eq x x)))
		(export double)
	]`), 0o644)
	require.NoError(t, err, "writing lib")

	rt := sxsrt.New(sxsrt.Options{WorkingDirectory: dir})
	result, err := rt.RunSource(`[
		#(import mylib "lib.sxs")
		(mylib/double 9)
	]`)
	require.NoError(t, err)
	require.Equal(t, value.KindInteger, result.Kind())
	require.Equal(t, int64(1), result.AsInt())
}
