package scope_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bosley/sxs/internal/scope"
	"github.com/bosley/sxs/internal/value"
)

func intVal(t *testing.T, n int64) value.Value {
	t.Helper()
	src := "42"
	if n != 42 {
		src = "-1"
	}
	v, err := value.Parse(src)
	require.Nil(t, err)
	return v
}

func TestDefineLookupShadowing(t *testing.T) {
	s := scope.New()
	v1 := intVal(t, 42)
	s.Define("x", v1)

	require.True(t, s.Has("x", false))

	s.Push()
	v2 := intVal(t, -1)
	s.Define("x", v2)

	got, ok := s.Lookup("x")
	require.True(t, ok)
	require.Equal(t, v2.AsInt(), got.AsInt(), "inner x should shadow outer")
	require.True(t, s.Has("x", true), "local-only lookup should see the shadowing binding")

	s.Pop()
	got, ok = s.Lookup("x")
	require.True(t, ok)
	require.Equal(t, v1.AsInt(), got.AsInt(), "expected outer x after pop")
}

func TestLambdaPurgedOnPopScope(t *testing.T) {
	s := scope.New()
	s.Push()

	id := s.AllocateLambdaID()
	body, _ := value.Parse("42")
	s.RegisterLambda(id, nil, value.KindInteger, body)

	_, ok := s.Lambda(id)
	require.True(t, ok, "lambda %d should be registered", id)

	s.Pop()

	_, ok = s.Lambda(id)
	require.False(t, ok, "lambda %d should be purged after pop_scope", id)
}

func TestLambdaSurvivesShallowerPop(t *testing.T) {
	s := scope.New()
	id := s.AllocateLambdaID()
	body, _ := value.Parse("42")
	s.RegisterLambda(id, nil, value.KindInteger, body)

	s.Push()
	s.Pop()

	_, ok := s.Lambda(id)
	require.True(t, ok, "root-depth lambda should survive an inner push/pop")
}

func TestLoopStack(t *testing.T) {
	ls := &scope.LoopStack{}
	require.False(t, ls.InLoop())

	ls.Push()
	require.True(t, ls.InLoop())
	require.Equal(t, int64(1), ls.Current().Iteration)

	ls.IncrementIteration()
	require.Equal(t, int64(2), ls.Current().Iteration)

	v, _ := value.Parse("99")
	require.True(t, ls.SignalDone(v), "SignalDone should succeed inside a loop")
	require.True(t, ls.ShouldExit())

	ls.Pop()
	require.False(t, ls.InLoop())
}

func TestLambdaSignature(t *testing.T) {
	body, _ := value.Parse("42")
	l := &scope.Lambda{
		Params:     []scope.Param{{Name: "a", Kind: value.KindInteger}, {Name: "b", Kind: value.KindReal}},
		ReturnKind: value.KindInteger,
		Body:       body,
	}
	require.Equal(t, ":fn<int,real>int", l.Signature())
}
