package interp

import (
	"fmt"

	"github.com/bosley/sxs/internal/config"
	"github.com/bosley/sxs/internal/kernelmgr"
	"github.com/bosley/sxs/internal/scope"
	"github.com/bosley/sxs/internal/value"
)

type formHandler func(in *Interpreter, list value.List) (value.Value, error)

var specialForms map[string]formHandler

func init() {
	specialForms = map[string]formHandler{
		config.FormDef:     (*Interpreter).handleDef,
		config.FormFn:      (*Interpreter).handleFn,
		config.FormIf:      (*Interpreter).handleIf,
		config.FormMatch:   (*Interpreter).handleMatch,
		config.FormReflect: (*Interpreter).handleReflect,
		config.FormTry:     (*Interpreter).handleTry,
		config.FormRecover: (*Interpreter).handleRecover,
		config.FormAssert:  (*Interpreter).handleAssert,
		config.FormEval:    (*Interpreter).handleEval,
		config.FormApply:   (*Interpreter).handleApply,
		config.FormCast:    (*Interpreter).handleCast,
		config.FormDo:      (*Interpreter).handleDo,
		config.FormDone:    (*Interpreter).handleDone,
		config.FormAt:      (*Interpreter).handleAt,
		config.FormEq:      (*Interpreter).handleEq,
		config.FormExport:  (*Interpreter).handleExport,
		config.FormDebug:   (*Interpreter).handleDebug,
	}
}

func (in *Interpreter) handleDef(list value.List) (value.Value, error) {
	if list.Size() != 3 {
		return value.Value{}, fmt.Errorf("def expects (def name value)")
	}
	name := list.At(1).AsSymbol()
	result, err := in.Eval(list.At(2))
	if err != nil {
		return value.Value{}, err
	}
	in.Scope.Define(name, result)
	return result, nil
}

func (in *Interpreter) handleFn(list value.List) (value.Value, error) {
	if list.Size() != 4 {
		return value.Value{}, fmt.Errorf("fn expects (fn (params) :ret body)")
	}

	paramsForm := list.At(1).List()
	params := make([]scope.Param, 0, paramsForm.Size())
	for i := 0; i < paramsForm.Size(); i++ {
		entry := paramsForm.At(i).List()
		if entry.Size() != 2 {
			return value.Value{}, fmt.Errorf("fn parameter must be (name :kind)")
		}
		kind, err := kernelmgr.TypeSymbolKind(entry.At(1).AsSymbol())
		if err != nil {
			return value.Value{}, err
		}
		params = append(params, scope.Param{Name: entry.At(0).AsSymbol(), Kind: kind})
	}

	retKind, err := kernelmgr.TypeSymbolKind(list.At(2).AsSymbol())
	if err != nil {
		return value.Value{}, err
	}

	id := in.Scope.AllocateLambdaID()
	in.Scope.RegisterLambda(id, params, retKind, list.At(3))

	return in.Builder.Aberrant(id), nil
}

func (in *Interpreter) handleIf(list value.List) (value.Value, error) {
	if list.Size() != 4 {
		return value.Value{}, fmt.Errorf("if expects (if cond then else)")
	}
	cond, err := in.Eval(list.At(1))
	if err != nil {
		return value.Value{}, err
	}
	if IsTruthy(cond) {
		return in.Eval(list.At(2))
	}
	return in.Eval(list.At(3))
}

// handleMatch evaluates arms in order, running the first whose pattern
// equals the subject (a bare "_" symbol pattern always matches, acting as
// a default arm), and returning that arm's result.
func (in *Interpreter) handleMatch(list value.List) (value.Value, error) {
	if list.Size() < 3 {
		return value.Value{}, fmt.Errorf("match expects (match subject (pattern result) ...)")
	}
	subject, err := in.Eval(list.At(1))
	if err != nil {
		return value.Value{}, err
	}

	for i := 2; i < list.Size(); i++ {
		arm := list.At(i).List()
		if arm.Size() != 2 {
			return value.Value{}, fmt.Errorf("match arm must be (pattern result)")
		}
		patternForm := arm.At(0)
		if patternForm.Kind() == value.KindSymbol && patternForm.AsSymbol() == "_" {
			return in.Eval(arm.At(1))
		}
		pattern, err := in.Eval(patternForm)
		if err != nil {
			return value.Value{}, err
		}
		if ValuesEqual(subject, pattern) {
			return in.Eval(arm.At(1))
		}
	}

	return in.Builder.None(), nil
}

func (in *Interpreter) handleReflect(list value.List) (value.Value, error) {
	if list.Size() != 2 {
		return value.Value{}, fmt.Errorf("reflect expects (reflect value)")
	}
	v, err := in.Eval(list.At(1))
	if err != nil {
		return value.Value{}, err
	}
	return in.Builder.Symbol(v.Kind().String()), nil
}

// handleTry evaluates body, converting any runtime error into an ERROR
// value (spec.md's "runtime failures become ERROR values, not thrown
// exceptions" rule) and recording it for a subsequent (recover ...) to
// bind as $exception.
func (in *Interpreter) handleTry(list value.List) (value.Value, error) {
	if list.Size() != 2 {
		return value.Value{}, fmt.Errorf("try expects (try body)")
	}
	result, err := in.Eval(list.At(1))
	if err != nil {
		errVal := in.Builder.ErrorString(err.Error())
		in.lastError = errVal
		return errVal, nil
	}
	return result, nil
}

// handleRecover binds $exception to the most recent error caught by an
// earlier (try ...) and evaluates handler.
func (in *Interpreter) handleRecover(list value.List) (value.Value, error) {
	if list.Size() != 2 {
		return value.Value{}, fmt.Errorf("recover expects (recover handler)")
	}
	in.Scope.Push()
	in.Scope.Define(config.ExceptionBindingName, in.lastError)
	result, err := in.Eval(list.At(1))
	in.Scope.Pop()
	return result, err
}

func (in *Interpreter) handleAssert(list value.List) (value.Value, error) {
	if list.Size() != 2 {
		return value.Value{}, fmt.Errorf("assert expects (assert cond)")
	}
	cond, err := in.Eval(list.At(1))
	if err != nil {
		return value.Value{}, err
	}
	if IsTruthy(cond) {
		return in.Builder.Int(1), nil
	}
	return in.Builder.Int(0), nil
}

func (in *Interpreter) handleEval(list value.List) (value.Value, error) {
	if list.Size() != 2 {
		return value.Value{}, fmt.Errorf("eval expects (eval form)")
	}
	form, err := in.Eval(list.At(1))
	if err != nil {
		return value.Value{}, err
	}
	return in.Eval(form)
}

// handleApply calls an already-evaluated lambda with an argument list
// value, by synthesizing a call form and reusing handleLambdaCall.
func (in *Interpreter) handleApply(list value.List) (value.Value, error) {
	if list.Size() != 3 {
		return value.Value{}, fmt.Errorf("apply expects (apply callable args)")
	}
	callee, err := in.Eval(list.At(1))
	if err != nil {
		return value.Value{}, err
	}
	if callee.Kind() != value.KindAberrant {
		return value.Value{}, fmt.Errorf("apply: callable must evaluate to a function")
	}
	argsVal, err := in.Eval(list.At(2))
	if err != nil {
		return value.Value{}, err
	}
	argsList := argsVal.List()

	elems := make([]value.Value, argsList.Size()+1)
	elems[0] = callee
	for i := 0; i < argsList.Size(); i++ {
		elems[i+1] = argsList.At(i)
	}
	synthetic := in.Builder.ParenList(elems)

	return in.handleAberrantCall(callee, synthetic.List(), 1)
}

// handleCast converts value to a target kind where a conversion is
// defined (numeric widening/narrowing, string<->symbol rendering); any
// other combination yields an ERROR value rather than a Go error, since a
// failed cast is ordinary program-level data, not an interpreter fault.
func (in *Interpreter) handleCast(list value.List) (value.Value, error) {
	if list.Size() != 3 {
		return value.Value{}, fmt.Errorf("cast expects (cast value :kind)")
	}
	v, err := in.Eval(list.At(1))
	if err != nil {
		return value.Value{}, err
	}
	targetKind, err := kernelmgr.TypeSymbolKind(list.At(2).AsSymbol())
	if err != nil {
		return value.Value{}, err
	}

	if v.Kind() == targetKind {
		return v, nil
	}

	switch targetKind {
	case value.KindInteger:
		switch v.Kind() {
		case value.KindReal:
			return in.Builder.Int(int64(v.AsReal())), nil
		case value.KindRune:
			return in.Builder.Int(int64(v.AsRune())), nil
		}
	case value.KindReal:
		if v.Kind() == value.KindInteger {
			return in.Builder.Real(float64(v.AsInt())), nil
		}
	case value.KindString:
		switch v.Kind() {
		case value.KindSymbol:
			return in.Builder.String(v.AsSymbol()), nil
		case value.KindInteger:
			return in.Builder.String(fmt.Sprintf("%d", v.AsInt())), nil
		case value.KindReal:
			return in.Builder.String(fmt.Sprintf("%g", v.AsReal())), nil
		}
	case value.KindSymbol:
		if v.Kind() == value.KindString {
			return in.Builder.Symbol(v.Str().String()), nil
		}
	}

	return in.Builder.ErrorString(fmt.Sprintf("cannot cast %s to %s", v.Kind(), targetKind)), nil
}

// handleDo runs body repeatedly, incrementing $iterations each pass,
// until (done value) signals completion, then returns that value.
func (in *Interpreter) handleDo(list value.List) (value.Value, error) {
	if list.Size() != 2 {
		return value.Value{}, fmt.Errorf("do expects (do body)")
	}
	body := list.At(1)

	in.Loops.Push()
	in.Scope.Push()
	defer in.Scope.Pop()

	for {
		in.Scope.Define(config.IterationsBindingName, in.Builder.Int(in.Loops.Current().Iteration))

		_, err := in.Eval(body)
		if err != nil {
			in.Loops.Pop()
			return value.Value{}, err
		}

		if in.Loops.ShouldExit() {
			break
		}
		in.Loops.IncrementIteration()
	}

	result := in.Loops.Current().ReturnVal
	in.Loops.Pop()
	return result, nil
}

func (in *Interpreter) handleDone(list value.List) (value.Value, error) {
	if !in.Loops.InLoop() {
		return value.Value{}, fmt.Errorf("done used outside of a do loop")
	}
	if list.Size() != 2 {
		return value.Value{}, fmt.Errorf("done expects (done value)")
	}
	v, err := in.Eval(list.At(1))
	if err != nil {
		return value.Value{}, err
	}
	in.Loops.SignalDone(v)
	return v, nil
}

func (in *Interpreter) handleAt(list value.List) (value.Value, error) {
	if list.Size() != 3 {
		return value.Value{}, fmt.Errorf("at expects (at index collection)")
	}
	idxVal, err := in.Eval(list.At(1))
	if err != nil {
		return value.Value{}, err
	}
	if idxVal.Kind() != value.KindInteger {
		return value.Value{}, fmt.Errorf("at: index must be :int")
	}
	idx := int(idxVal.AsInt())

	coll, err := in.Eval(list.At(2))
	if err != nil {
		return value.Value{}, err
	}

	switch coll.Kind() {
	case value.KindParenList, value.KindBracketList, value.KindBraceList:
		elem := coll.List().At(idx)
		if !elem.HasData() {
			return in.Builder.ErrorString("index out of range"), nil
		}
		return elem, nil
	case value.KindString:
		if idx < 0 || idx >= coll.Str().Size() {
			return in.Builder.ErrorString("index out of range"), nil
		}
		return in.Builder.Rune(coll.Str().At(idx)), nil
	default:
		return value.Value{}, fmt.Errorf("at: collection must be a list or string kind")
	}
}

func (in *Interpreter) handleEq(list value.List) (value.Value, error) {
	if list.Size() != 3 {
		return value.Value{}, fmt.Errorf("eq expects (eq a b)")
	}
	a, err := in.Eval(list.At(1))
	if err != nil {
		return value.Value{}, err
	}
	b, err := in.Eval(list.At(2))
	if err != nil {
		return value.Value{}, err
	}
	if ValuesEqual(a, b) {
		return in.Builder.Int(1), nil
	}
	return in.Builder.Int(0), nil
}

func (in *Interpreter) handleExport(list value.List) (value.Value, error) {
	if list.Size() != 2 {
		return value.Value{}, fmt.Errorf("export expects (export name)")
	}
	name := list.At(1).AsSymbol()
	v, ok := in.Scope.Lookup(name)
	if !ok {
		return value.Value{}, fmt.Errorf("cannot export undefined symbol %q", name)
	}
	in.currentExports[name] = v.Clone()
	return v, nil
}

func (in *Interpreter) handleDebug(list value.List) (value.Value, error) {
	if list.Size() != 2 {
		return value.Value{}, fmt.Errorf("debug expects (debug value)")
	}
	v, err := in.Eval(list.At(1))
	if err != nil {
		return value.Value{}, err
	}
	in.Logger.Debug("debug", "kind", v.Kind().String())
	return v, nil
}

func (in *Interpreter) handleImportRuntime(list value.List) (value.Value, error) {
	if list.Size() != 3 {
		return value.Value{}, fmt.Errorf("import expects #(import symbol \"path\")")
	}
	if in.Imports == nil {
		return value.Value{}, fmt.Errorf("no import manager wired into interpreter")
	}
	symbol := list.At(1).AsSymbol()
	path := list.At(2).Str().String()

	exports, err := in.Imports.AttemptImport(symbol, path)
	if err != nil {
		return value.Value{}, err
	}
	for name, v := range exports {
		in.Scope.Define(symbol+"/"+name, v)
	}
	return in.Builder.None(), nil
}

func (in *Interpreter) handleLoadRuntime(list value.List) (value.Value, error) {
	if list.Size() != 2 {
		return value.Value{}, fmt.Errorf("load expects #(load \"kernel-name\")")
	}
	if in.Registry == nil {
		return value.Value{}, fmt.Errorf("no kernel registry wired into interpreter")
	}
	name := list.At(1).Str().String()

	km := kernelmgr.NewKernelManager(in.IncludePaths, in.WorkingDirectory)
	dir, err := km.ResolveKernelDir(name)
	if err != nil {
		return value.Value{}, err
	}
	manifest, err := km.LoadManifest(dir)
	if err != nil {
		return value.Value{}, err
	}
	if err := km.LoadNative(dir, manifest, in.Registry, in.APITable()); err != nil {
		return value.Value{}, err
	}

	return in.Builder.None(), nil
}

func (in *Interpreter) handleDefineFormRuntime(list value.List) (value.Value, error) {
	if list.Size() != 3 {
		return value.Value{}, fmt.Errorf("define-form expects #(define-form name (:k1 :k2 ...))")
	}
	name := list.At(1).AsSymbol()
	elementsForm := list.At(2).List()

	kinds := make([]value.Kind, 0, elementsForm.Size())
	for i := 0; i < elementsForm.Size(); i++ {
		kind, err := kernelmgr.TypeSymbolKind(elementsForm.At(i).AsSymbol())
		if err != nil {
			return value.Value{}, err
		}
		kinds = append(kinds, kind)
	}
	in.formDefinitions[name] = kinds

	return in.Builder.None(), nil
}

// HasForm reports whether name has been registered via define-form.
func (in *Interpreter) HasForm(name string) bool {
	_, ok := in.formDefinitions[name]
	return ok
}
