// Package interp implements the tree-walking evaluator: the single eval()
// dispatch over a parsed program's value kinds, lambda and kernel call
// handling, the do/done loop-context stack, and try/recover runtime
// failure conversion.
//
// Grounded on original_source/core/interpreter.cpp's interpreter_c: its
// eval() switch, has_symbol/define_symbol, push_scope/pop_scope with
// lambda purging, handle_aberrant_call/handle_lambda_call's exact
// arg-evaluation and return-type-check sequence, and the kernel-lock
// trigger inside BRACKET_LIST evaluation.
package interp

import (
	"fmt"
	"log/slog"

	"github.com/bosley/sxs/internal/config"
	"github.com/bosley/sxs/internal/kernelmgr"
	"github.com/bosley/sxs/internal/scope"
	"github.com/bosley/sxs/internal/value"
	"github.com/bosley/sxs/pkg/kernelapi"
)

// Interpreter holds all mutable evaluation state for one program run:
// lexical scope, the lambda table, the loop-context stack, the shared
// kernel registry and import manager, and the value Builder every
// synthesized result is allocated through.
type Interpreter struct {
	Scope    *scope.Stack
	Loops    scope.LoopStack
	Builder  *value.Builder
	Registry *kernelmgr.Registry
	Imports  *kernelmgr.ImportManager
	Logger   *slog.Logger

	IncludePaths     []string
	WorkingDirectory string

	formDefinitions     map[string][]value.Kind
	kernelLockTriggered bool
	currentExports      map[string]value.Value
	lastError           value.Value
}

// New returns a ready Interpreter. registry and imports may be nil for a
// program that never uses #(load ...) / #(import ...).
func New(registry *kernelmgr.Registry, imports *kernelmgr.ImportManager, includePaths []string, workingDirectory string, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		Scope:            scope.New(),
		Builder:          value.NewBuilder(),
		Registry:         registry,
		Imports:          imports,
		Logger:           logger,
		IncludePaths:     includePaths,
		WorkingDirectory: workingDirectory,
		formDefinitions:  make(map[string][]value.Kind),
		currentExports:   make(map[string]value.Value),
	}
}

// Exports returns every binding exported via (export name) so far.
func (in *Interpreter) Exports() map[string]value.Value {
	out := make(map[string]value.Value, len(in.currentExports))
	for k, v := range in.currentExports {
		out[k] = v
	}
	return out
}

// Eval dispatches on v's kind, matching interpreter_c::eval's switch.
func (in *Interpreter) Eval(v value.Value) (value.Value, error) {
	switch v.Kind() {
	case value.KindInteger, value.KindReal, value.KindString, value.KindRune:
		return v, nil

	case value.KindSymbol:
		if found, ok := in.Scope.Lookup(v.AsSymbol()); ok {
			return found, nil
		}
		return v, nil

	case value.KindAberrant:
		return v, nil

	case value.KindSome:
		return in.Eval(v.Inner())

	case value.KindParenList:
		return in.evalParenList(v)

	case value.KindDatum:
		return in.evalDatum(v)

	case value.KindBracketList:
		return in.evalBracketList(v)

	default:
		return v, nil
	}
}

func (in *Interpreter) evalParenList(v value.Value) (value.Value, error) {
	list := v.List()
	if list.Empty() {
		return v, nil
	}

	first := list.At(0)
	if first.Kind() != value.KindSymbol {
		return value.Value{}, fmt.Errorf("cannot call non-symbol type: %s", first.Kind())
	}
	cmd := first.AsSymbol()

	if handler, ok := specialForms[cmd]; ok {
		return handler(in, list)
	}

	if in.Registry != nil {
		if desc, ok := in.Registry.Get(cmd); ok && desc.Native != nil {
			return in.callNative(desc, list)
		}
	}

	evaledFirst, err := in.Eval(first)
	if err != nil {
		return value.Value{}, err
	}
	if evaledFirst.Kind() == value.KindAberrant {
		return in.handleAberrantCall(evaledFirst, list, 1)
	}

	return value.Value{}, fmt.Errorf("unknown callable symbol: %s", cmd)
}

func (in *Interpreter) callNative(desc *kernelmgr.FuncDescriptor, list value.List) (value.Value, error) {
	argCount := list.Size() - 1
	if desc.Variadic {
		if argCount < len(desc.ParamKinds) {
			return value.Value{}, fmt.Errorf("%s expects at least %d arguments, got %d", desc.Name, len(desc.ParamKinds), argCount)
		}
	} else if argCount != len(desc.ParamKinds) {
		return value.Value{}, fmt.Errorf("%s expects %d arguments, got %d", desc.Name, len(desc.ParamKinds), argCount)
	}

	args := make([]value.Value, argCount)
	for i := 0; i < argCount; i++ {
		arg, err := in.Eval(list.At(i + 1))
		if err != nil {
			return value.Value{}, err
		}
		if i < len(desc.ParamKinds) && desc.ParamKinds[i] != value.KindNone && arg.Kind() != desc.ParamKinds[i] {
			return value.Value{}, fmt.Errorf("%s argument %d: expected %s, got %s", desc.Name, i+1, desc.ParamKinds[i], arg.Kind())
		}
		args[i] = arg
	}

	return desc.Native(args), nil
}

// handleAberrantCall resolves an ABERRANT value to a registered lambda and
// invokes it. argStart is the index in list the call arguments begin at
// (1 for a normal PAREN_LIST call, 1 for an apply-synthesized list too,
// since both keep the callable at index 0).
func (in *Interpreter) handleAberrantCall(aberrant value.Value, list value.List, argStart int) (value.Value, error) {
	id := aberrant.AberrantID()
	lambda, ok := in.Scope.Lambda(id)
	if !ok {
		return value.Value{}, fmt.Errorf("unknown function")
	}
	return in.handleLambdaCall(lambda, list, argStart)
}

func (in *Interpreter) handleLambdaCall(lambda *scope.Lambda, list value.List, argStart int) (value.Value, error) {
	argCount := list.Size() - argStart
	if argCount != len(lambda.Params) {
		return value.Value{}, fmt.Errorf("function expects %d arguments, got %d", len(lambda.Params), argCount)
	}

	argValues := make([]value.Value, argCount)
	for i := 0; i < argCount; i++ {
		arg, err := in.Eval(list.At(argStart + i))
		if err != nil {
			return value.Value{}, err
		}
		param := lambda.Params[i]
		if param.Kind != value.KindNone && arg.Kind() != param.Kind {
			return value.Value{}, fmt.Errorf("argument %d type mismatch: expected %s, got %s", i+1, param.Kind, arg.Kind())
		}
		argValues[i] = arg
	}

	in.Scope.Push()
	for i, param := range lambda.Params {
		in.Scope.Define(param.Name, argValues[i])
	}

	result, err := in.Eval(lambda.Body)
	if err != nil {
		in.Scope.Pop()
		return value.Value{}, err
	}

	if lambda.ReturnKind != value.KindNone && result.Kind() != lambda.ReturnKind {
		in.Scope.Pop()
		return in.Builder.ErrorString("internal function error: returned unexpected type"), nil
	}

	in.Scope.Pop()
	return result, nil
}

func (in *Interpreter) evalDatum(v value.Value) (value.Value, error) {
	inner := v.Inner()
	if inner.Kind() != value.KindParenList || inner.List().Empty() {
		return v, nil
	}
	list := inner.List()
	first := list.At(0)
	if first.Kind() != value.KindSymbol {
		return v, nil
	}
	cmd := first.AsSymbol()

	if handler, ok := specialForms[cmd]; ok {
		return handler(in, list)
	}

	switch cmd {
	case config.DatumImport:
		return in.handleImportRuntime(list)
	case config.DatumLoad:
		return in.handleLoadRuntime(list)
	case config.DatumDefineForm:
		return in.handleDefineFormRuntime(list)
	default:
		return value.Value{}, fmt.Errorf("unknown datum callable symbol: %s", cmd)
	}
}

func (in *Interpreter) evalBracketList(v value.Value) (value.Value, error) {
	list := v.List()
	var result value.Value
	for i := 0; i < list.Size(); i++ {
		elem := list.At(i)

		if !in.kernelLockTriggered && elem.Kind() != value.KindDatum {
			in.triggerKernelLock()
			in.kernelLockTriggered = true
		}

		r, err := in.Eval(elem)
		if err != nil {
			return value.Value{}, err
		}
		result = r
	}
	return result, nil
}

func (in *Interpreter) triggerKernelLock() {
	if in.Registry != nil {
		in.Registry.Lock()
	}
	if in.Imports != nil {
		in.Imports.Lock()
	}
}

// IsTruthy reports whether v counts as true in an (if ...) / (assert ...)
// condition position: NONE is false, INTEGER 0 is false, everything else
// is true.
func IsTruthy(v value.Value) bool {
	switch v.Kind() {
	case value.KindNone:
		return false
	case value.KindInteger:
		return v.AsInt() != 0
	default:
		return true
	}
}

// ValuesEqual implements the structural equality (eq a b) reports,
// recursing into list and string contents.
func ValuesEqual(a, b value.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case value.KindNone:
		return true
	case value.KindInteger:
		return a.AsInt() == b.AsInt()
	case value.KindReal:
		return a.AsReal() == b.AsReal()
	case value.KindRune:
		return a.AsRune() == b.AsRune()
	case value.KindSymbol:
		return a.AsSymbol() == b.AsSymbol()
	case value.KindString:
		return a.Str().String() == b.Str().String()
	case value.KindAberrant:
		return a.AberrantID() == b.AberrantID()
	case value.KindSome, value.KindError, value.KindDatum:
		return ValuesEqual(a.Inner(), b.Inner())
	case value.KindParenList, value.KindBracketList, value.KindBraceList:
		al, bl := a.List(), b.List()
		if al.Size() != bl.Size() {
			return false
		}
		for i := 0; i < al.Size(); i++ {
			if !ValuesEqual(al.At(i), bl.At(i)) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// APITable builds the kernelapi.APITable bound to this interpreter's
// Builder and Eval, for handing to a native kernel's KernelInit.
func (in *Interpreter) APITable() kernelapi.APITable {
	wrap := func(v value.Value) kernelapi.Object { return kernelapi.Object(v) }
	unwrap := func(o kernelapi.Object) value.Value {
		v, _ := o.(value.Value)
		return v
	}

	return kernelapi.APITable{
		Eval: func(obj kernelapi.Object) kernelapi.Object {
			result, err := in.Eval(unwrap(obj))
			if err != nil {
				return wrap(in.Builder.ErrorString(err.Error()))
			}
			return wrap(result)
		},
		GetKind:  func(obj kernelapi.Object) kernelapi.Kind { return kernelapi.Kind(unwrap(obj).Kind()) },
		AsInt:    func(obj kernelapi.Object) int64 { return unwrap(obj).AsInt() },
		AsReal:   func(obj kernelapi.Object) float64 { return unwrap(obj).AsReal() },
		AsString: func(obj kernelapi.Object) string { return unwrap(obj).Str().String() },
		AsSymbol: func(obj kernelapi.Object) string { return unwrap(obj).AsSymbol() },
		ListSize: func(obj kernelapi.Object) int { return unwrap(obj).List().Size() },
		ListAt:   func(obj kernelapi.Object, index int) kernelapi.Object { return wrap(unwrap(obj).List().At(index)) },
		SomeHasValue: func(obj kernelapi.Object) bool {
			v := unwrap(obj)
			return v.Kind() == value.KindSome && v.Inner().HasData()
		},
		SomeGetValue:      func(obj kernelapi.Object) kernelapi.Object { return wrap(unwrap(obj).Inner()) },
		CreateInt:         func(v int64) kernelapi.Object { return wrap(in.Builder.Int(v)) },
		CreateReal:        func(v float64) kernelapi.Object { return wrap(in.Builder.Real(v)) },
		CreateString:      func(v string) kernelapi.Object { return wrap(in.Builder.String(v)) },
		CreateSymbol:      func(name string) kernelapi.Object { return wrap(in.Builder.Symbol(name)) },
		CreateNone:        func() kernelapi.Object { return wrap(in.Builder.None()) },
		CreateError:       func(inner kernelapi.Object) kernelapi.Object { return wrap(in.Builder.Error(unwrap(inner))) },
		CreateParenList: func(elems []kernelapi.Object) kernelapi.Object {
			vs := make([]value.Value, len(elems))
			for i, e := range elems {
				vs[i] = unwrap(e)
			}
			return wrap(in.Builder.ParenList(vs))
		},
		CreateBracketList: func(elems []kernelapi.Object) kernelapi.Object {
			vs := make([]value.Value, len(elems))
			for i, e := range elems {
				vs[i] = unwrap(e)
			}
			return wrap(in.Builder.BracketList(vs))
		},
		CreateBraceList: func(elems []kernelapi.Object) kernelapi.Object {
			vs := make([]value.Value, len(elems))
			for i, e := range elems {
				vs[i] = unwrap(e)
			}
			return wrap(in.Builder.BraceList(vs))
		},
	}
}
