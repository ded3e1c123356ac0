package typecheck

import (
	"fmt"
	"os"

	"github.com/bosley/sxs/internal/config"
	"github.com/bosley/sxs/internal/kernelmgr"
	"github.com/bosley/sxs/internal/value"
)

type formHandler func(c *Checker, list value.List) (TypeInfo, error)

var specialForms map[string]formHandler

func init() {
	specialForms = map[string]formHandler{
		config.FormDef:     (*Checker).handleDef,
		config.FormFn:      (*Checker).handleFn,
		config.FormIf:      (*Checker).handleIf,
		config.FormMatch:   (*Checker).handleMatch,
		config.FormReflect: (*Checker).handleReflect,
		config.FormTry:     (*Checker).handleTry,
		config.FormRecover: (*Checker).handleRecover,
		config.FormAssert:  (*Checker).handleAssert,
		config.FormEval:    (*Checker).handleEval,
		config.FormApply:   (*Checker).handleApply,
		config.FormCast:    (*Checker).handleCast,
		config.FormDo:      (*Checker).handleDo,
		config.FormDone:    (*Checker).handleDone,
		config.FormAt:      (*Checker).handleAt,
		config.FormEq:      (*Checker).handleEq,
		config.FormExport:  (*Checker).handleExport,
		config.FormDebug:   (*Checker).handleDebug,
	}
}

// handleDef checks `(def name value)`: name must not already be bound in
// the local scope, and the bound type is the value's evaluated type.
func (c *Checker) handleDef(list value.List) (TypeInfo, error) {
	if list.Size() != 3 {
		return TypeInfo{}, &CheckError{Form: config.FormDef, Message: "expects (def name value)"}
	}
	nameForm := list.At(1)
	if nameForm.Kind() != value.KindSymbol {
		return TypeInfo{}, &CheckError{Form: config.FormDef, Message: "name must be a symbol"}
	}
	name := nameForm.AsSymbol()
	if c.hasSymbol(name, true) {
		return TypeInfo{}, &CheckError{Form: config.FormDef, Message: fmt.Sprintf("%q already defined in this scope", name)}
	}

	t, err := c.evalType(list.At(2))
	if err != nil {
		return TypeInfo{}, err
	}
	c.defineSymbol(name, t)
	return t, nil
}

// handleFn checks `(fn ((p1 :k1) (p2 :k2)) :ret body)`, registering the
// lambda's signature under a freshly allocated id and returning an
// ABERRANT TypeInfo carrying that id (callers resolve the real signature
// through lambdaSigs).
func (c *Checker) handleFn(list value.List) (TypeInfo, error) {
	if list.Size() != 4 {
		return TypeInfo{}, &CheckError{Form: config.FormFn, Message: "expects (fn (params) :ret body)"}
	}

	paramsForm := list.At(1).List()
	var params []TypeInfo
	for i := 0; i < paramsForm.Size(); i++ {
		entry := paramsForm.At(i).List()
		if entry.Size() != 2 {
			return TypeInfo{}, &CheckError{Form: config.FormFn, Message: "each parameter must be (name :kind)"}
		}
		kindSym := entry.At(1).AsSymbol()
		kindInfo, ok := c.isTypeSymbol(kindSym)
		if !ok {
			return TypeInfo{}, &CheckError{Form: config.FormFn, Message: fmt.Sprintf("unknown parameter type %q", kindSym)}
		}
		params = append(params, kindInfo)
	}

	retSym := list.At(2).AsSymbol()
	retInfo, ok := c.isTypeSymbol(retSym)
	if !ok {
		return TypeInfo{}, &CheckError{Form: config.FormFn, Message: fmt.Sprintf("unknown return type %q", retSym)}
	}

	c.pushScope()
	for i := 0; i < paramsForm.Size(); i++ {
		entry := paramsForm.At(i).List()
		c.defineSymbol(entry.At(0).AsSymbol(), params[i])
	}
	bodyType, err := c.evalType(list.At(3))
	c.popScope()
	if err != nil {
		return TypeInfo{}, err
	}
	if retInfo.Kind != value.KindNone && bodyType.Kind != retInfo.Kind {
		return TypeInfo{}, &CheckError{Form: config.FormFn, Message: fmt.Sprintf("body evaluates to %s, declared return is %s", bodyType.Kind, retInfo.Kind)}
	}

	id := c.nextLambdaID
	c.nextLambdaID++
	c.lambdaSigs[id] = FunctionSignature{Parameters: params, ReturnType: retInfo}

	sig := ":fn<"
	for i, p := range params {
		if i > 0 {
			sig += ","
		}
		sig += p.Kind.String()
	}
	sig += ">" + retInfo.Kind.String()

	return TypeInfo{Kind: value.KindAberrant, LambdaSignature: sig, LambdaID: id}, nil
}

// handleIf checks `(if cond then else)`: cond's kind is unrestricted (at
// runtime NONE and integer 0 are false, every other value is true), and
// the result type is the
// then-branch's type if both branches agree, else NONE.
func (c *Checker) handleIf(list value.List) (TypeInfo, error) {
	if list.Size() != 4 {
		return TypeInfo{}, &CheckError{Form: config.FormIf, Message: "expects (if cond then else)"}
	}
	if _, err := c.evalType(list.At(1)); err != nil {
		return TypeInfo{}, err
	}
	thenType, err := c.evalType(list.At(2))
	if err != nil {
		return TypeInfo{}, err
	}
	elseType, err := c.evalType(list.At(3))
	if err != nil {
		return TypeInfo{}, err
	}
	if thenType.Kind == elseType.Kind {
		return thenType, nil
	}
	return TypeInfo{Kind: value.KindNone}, nil
}

// handleMatch checks `(match subject (pattern1 result1) (pattern2
// result2) ...)`, requiring at least one arm and returning NONE since arm
// result types may legitimately differ (spec.md leaves match-arm kind
// agreement as caller responsibility, enforced at runtime by try/recover
// around an unexpected-kind use, not statically).
func (c *Checker) handleMatch(list value.List) (TypeInfo, error) {
	if list.Size() < 3 {
		return TypeInfo{}, &CheckError{Form: config.FormMatch, Message: "expects (match subject (pattern result) ...)"}
	}
	if _, err := c.evalType(list.At(1)); err != nil {
		return TypeInfo{}, err
	}
	for i := 2; i < list.Size(); i++ {
		arm := list.At(i).List()
		if arm.Size() != 2 {
			return TypeInfo{}, &CheckError{Form: config.FormMatch, Message: "each arm must be (pattern result)"}
		}
		if _, err := c.evalType(arm.At(1)); err != nil {
			return TypeInfo{}, err
		}
	}
	return TypeInfo{Kind: value.KindNone}, nil
}

// handleReflect checks `(reflect value)`, always returning :symbol (the
// kind name of the evaluated argument).
func (c *Checker) handleReflect(list value.List) (TypeInfo, error) {
	if list.Size() != 2 {
		return TypeInfo{}, &CheckError{Form: config.FormReflect, Message: "expects (reflect value)"}
	}
	if _, err := c.evalType(list.At(1)); err != nil {
		return TypeInfo{}, err
	}
	return TypeInfo{Kind: value.KindSymbol}, nil
}

// handleTry checks `(try body)`, returning the body's own type (a runtime
// failure converts to an ERROR-kind value rather than changing the static
// type).
func (c *Checker) handleTry(list value.List) (TypeInfo, error) {
	if list.Size() != 2 {
		return TypeInfo{}, &CheckError{Form: config.FormTry, Message: "expects (try body)"}
	}
	return c.evalType(list.At(1))
}

// handleRecover checks `(recover handler)`, binding $exception as
// KindError for the duration of the handler body.
func (c *Checker) handleRecover(list value.List) (TypeInfo, error) {
	if list.Size() != 2 {
		return TypeInfo{}, &CheckError{Form: config.FormRecover, Message: "expects (recover handler)"}
	}
	c.pushScope()
	c.defineSymbol(config.ExceptionBindingName, TypeInfo{Kind: value.KindError})
	t, err := c.evalType(list.At(1))
	c.popScope()
	return t, err
}

// handleAssert checks `(assert cond)`, returning :int (1/0 at runtime).
func (c *Checker) handleAssert(list value.List) (TypeInfo, error) {
	if list.Size() != 2 {
		return TypeInfo{}, &CheckError{Form: config.FormAssert, Message: "expects (assert cond)"}
	}
	if _, err := c.evalType(list.At(1)); err != nil {
		return TypeInfo{}, err
	}
	return TypeInfo{Kind: value.KindInteger}, nil
}

// handleEval checks `(eval form)`; the statically known result kind is
// NONE since the evaluated form is only known at runtime.
func (c *Checker) handleEval(list value.List) (TypeInfo, error) {
	if list.Size() != 2 {
		return TypeInfo{}, &CheckError{Form: config.FormEval, Message: "expects (eval form)"}
	}
	if _, err := c.evalType(list.At(1)); err != nil {
		return TypeInfo{}, err
	}
	return TypeInfo{Kind: value.KindNone}, nil
}

// handleApply checks `(apply callable args-list)`.
func (c *Checker) handleApply(list value.List) (TypeInfo, error) {
	if list.Size() != 3 {
		return TypeInfo{}, &CheckError{Form: config.FormApply, Message: "expects (apply callable args)"}
	}
	calleeType, err := c.evalType(list.At(1))
	if err != nil {
		return TypeInfo{}, err
	}
	if _, err := c.evalType(list.At(2)); err != nil {
		return TypeInfo{}, err
	}
	if calleeType.LambdaID != 0 {
		if sig, ok := c.lambdaSigs[calleeType.LambdaID]; ok {
			return sig.ReturnType, nil
		}
	}
	return TypeInfo{Kind: value.KindNone}, nil
}

// handleCast checks `(cast value :kind)`, returning the target kind
// unconditionally (runtime decides convertibility).
func (c *Checker) handleCast(list value.List) (TypeInfo, error) {
	if list.Size() != 3 {
		return TypeInfo{}, &CheckError{Form: config.FormCast, Message: "expects (cast value :kind)"}
	}
	if _, err := c.evalType(list.At(1)); err != nil {
		return TypeInfo{}, err
	}
	kindSym := list.At(2).AsSymbol()
	kindInfo, ok := c.isTypeSymbol(kindSym)
	if !ok {
		return TypeInfo{}, &CheckError{Form: config.FormCast, Message: fmt.Sprintf("unknown cast target %q", kindSym)}
	}
	return kindInfo, nil
}

// handleDo checks `(do body)`: pushes a loop context and a scope binding
// $iterations as :int, then checks body once (the runtime re-evaluates it
// per iteration, but its static type doesn't vary across iterations).
//
// Grounded on core/instructions/typechecking/typechecking.cpp's
// typecheck_do, recovered into this tcs.cpp-style checker since spec.md's
// do/done loop semantics are otherwise unreachable from the checker.
func (c *Checker) handleDo(list value.List) (TypeInfo, error) {
	if list.Size() != 2 {
		return TypeInfo{}, &CheckError{Form: config.FormDo, Message: "expects (do body)"}
	}
	c.loopDepth++
	c.pushScope()
	c.defineSymbol(config.IterationsBindingName, TypeInfo{Kind: value.KindInteger})
	t, err := c.evalType(list.At(1))
	c.popScope()
	c.loopDepth--
	if err != nil {
		return TypeInfo{}, err
	}
	if t.Kind == value.KindNone {
		return TypeInfo{Kind: value.KindNone}, nil
	}
	return t, nil
}

// handleDone checks `(done value)`, requiring an enclosing do loop.
func (c *Checker) handleDone(list value.List) (TypeInfo, error) {
	if c.loopDepth == 0 {
		return TypeInfo{}, &CheckError{Form: config.FormDone, Message: "done used outside of a do loop"}
	}
	if list.Size() != 2 {
		return TypeInfo{}, &CheckError{Form: config.FormDone, Message: "expects (done value)"}
	}
	return c.evalType(list.At(1))
}

// handleAt checks `(at index collection)`: index must be :int, collection
// must be a list or string kind.
func (c *Checker) handleAt(list value.List) (TypeInfo, error) {
	if list.Size() != 3 {
		return TypeInfo{}, &CheckError{Form: config.FormAt, Message: "expects (at index collection)"}
	}
	idxType, err := c.evalType(list.At(1))
	if err != nil {
		return TypeInfo{}, err
	}
	if idxType.Kind != value.KindInteger {
		return TypeInfo{}, &CheckError{Form: config.FormAt, Message: "index must be :int"}
	}
	collType, err := c.evalType(list.At(2))
	if err != nil {
		return TypeInfo{}, err
	}
	switch collType.Kind {
	case value.KindParenList, value.KindBracketList, value.KindBraceList:
		return TypeInfo{Kind: value.KindNone}, nil
	case value.KindString:
		return TypeInfo{Kind: value.KindRune}, nil
	default:
		return TypeInfo{}, &CheckError{Form: config.FormAt, Message: "collection must be a list or string kind"}
	}
}

// handleEq checks `(eq a b)`, always returning :int (1/0 at runtime).
func (c *Checker) handleEq(list value.List) (TypeInfo, error) {
	if list.Size() != 3 {
		return TypeInfo{}, &CheckError{Form: config.FormEq, Message: "expects (eq a b)"}
	}
	if _, err := c.evalType(list.At(1)); err != nil {
		return TypeInfo{}, err
	}
	if _, err := c.evalType(list.At(2)); err != nil {
		return TypeInfo{}, err
	}
	return TypeInfo{Kind: value.KindInteger}, nil
}

// handleExport checks `(export name)`, recording name's current type in
// currentExports for the composing layer to expose to importers.
func (c *Checker) handleExport(list value.List) (TypeInfo, error) {
	if list.Size() != 2 {
		return TypeInfo{}, &CheckError{Form: config.FormExport, Message: "expects (export name)"}
	}
	name := list.At(1).AsSymbol()
	t, ok := c.symbolType(name)
	if !ok {
		return TypeInfo{}, &CheckError{Form: config.FormExport, Message: fmt.Sprintf("cannot export undefined symbol %q", name)}
	}
	c.currentExports[name] = t
	return t, nil
}

// handleDebug checks `(debug value)`, returning the argument's own type
// unchanged (debug is a checked pass-through, printing at runtime).
func (c *Checker) handleDebug(list value.List) (TypeInfo, error) {
	if list.Size() != 2 {
		return TypeInfo{}, &CheckError{Form: config.FormDebug, Message: "expects (debug value)"}
	}
	return c.evalType(list.At(1))
}

// handleImport checks `#(import symbol "path")`, recursively
// type-checking the target file (with cycle detection) and binding symbol
// in the current scope as a NONE-kind namespace marker — individual
// imported bindings are installed under "symbol/name" once the file's own
// exports are known.
//
// Grounded on tcs.cpp's resolve_file_path/checked_files_/
// currently_checking_/check_stack_ trio.
func (c *Checker) handleImport(list value.List) (TypeInfo, error) {
	if list.Size() != 3 {
		return TypeInfo{}, &CheckError{Form: config.DatumImport, Message: "expects #(import symbol \"path\")"}
	}
	symbol := list.At(1).AsSymbol()
	path := list.At(2).Str().String()

	resolved, err := c.resolveFilePath(path)
	if err != nil {
		return TypeInfo{}, &CheckError{Form: config.DatumImport, Message: err.Error()}
	}

	if c.currentlyChecking[resolved] {
		return TypeInfo{}, &CheckError{Form: config.DatumImport, Message: fmt.Sprintf("import cycle detected at %q", resolved)}
	}

	if !c.checkedFiles[resolved] {
		src, err := os.ReadFile(resolved)
		if err != nil {
			return TypeInfo{}, &CheckError{Form: config.DatumImport, Message: err.Error()}
		}
		root, perr := value.Parse(string(src))
		if perr != nil {
			return TypeInfo{}, &CheckError{Form: config.DatumImport, Message: perr.Error()}
		}

		c.currentlyChecking[resolved] = true
		c.checkStack = append(c.checkStack, resolved)
		savedExports := c.currentExports
		c.currentExports = make(map[string]TypeInfo)

		sub := New(c.IncludePaths, c.WorkingDirectory, c.Registry)
		sub.checkedFiles = c.checkedFiles
		sub.currentlyChecking = c.currentlyChecking
		exports, err := sub.Check(root)

		c.checkStack = c.checkStack[:len(c.checkStack)-1]
		delete(c.currentlyChecking, resolved)
		c.currentExports = savedExports

		if err != nil {
			return TypeInfo{}, err
		}
		c.checkedFiles[resolved] = true
		for name, t := range exports {
			c.defineSymbol(symbol+"/"+name, t)
		}
	}

	c.defineSymbol(symbol, TypeInfo{Kind: value.KindNone})
	return TypeInfo{Kind: value.KindNone}, nil
}

// handleLoad checks `#(load "kernel-name")`, resolving the kernel's
// directory, parsing its manifest, and declaring every function signature
// it contributes into the shared Registry so later PAREN_LIST calls can
// resolve against it.
func (c *Checker) handleLoad(list value.List) (TypeInfo, error) {
	if list.Size() != 2 {
		return TypeInfo{}, &CheckError{Form: config.DatumLoad, Message: "expects #(load \"kernel-name\")"}
	}
	name := list.At(1).Str().String()

	if c.Registry == nil {
		return TypeInfo{}, &CheckError{Form: config.DatumLoad, Message: "no kernel registry wired into checker"}
	}

	km := kernelmgr.NewKernelManager(c.IncludePaths, c.WorkingDirectory)
	dir, err := km.ResolveKernelDir(name)
	if err != nil {
		return TypeInfo{}, &CheckError{Form: config.DatumLoad, Message: err.Error()}
	}
	manifest, err := km.LoadManifest(dir)
	if err != nil {
		return TypeInfo{}, &CheckError{Form: config.DatumLoad, Message: err.Error()}
	}
	if err := km.DeclareManifest(c.Registry, manifest); err != nil {
		return TypeInfo{}, &CheckError{Form: config.DatumLoad, Message: err.Error()}
	}

	return TypeInfo{Kind: value.KindNone}, nil
}

// handleDefineForm checks `#(define-form name (:k1 :k2 ...))`, registering
// a composite BRACE_LIST type named :name / :name.. for later use as a
// parameter or cast target.
//
// Grounded on core/instructions/datum.cpp's define-form registration.
func (c *Checker) handleDefineForm(list value.List) (TypeInfo, error) {
	if list.Size() != 3 {
		return TypeInfo{}, &CheckError{Form: config.DatumDefineForm, Message: "expects #(define-form name (:k1 :k2 ...))"}
	}
	name := list.At(1).AsSymbol()
	elementsForm := list.At(2).List()

	var kinds []value.Kind
	for i := 0; i < elementsForm.Size(); i++ {
		sym := elementsForm.At(i).AsSymbol()
		info, ok := c.isTypeSymbol(sym)
		if !ok {
			return TypeInfo{}, &CheckError{Form: config.DatumDefineForm, Message: fmt.Sprintf("unknown element type %q", sym)}
		}
		kinds = append(kinds, info.Kind)
	}

	c.formDefinitions[name] = kinds
	c.typeSymbols[":"+name] = TypeInfo{Kind: value.KindBraceList}
	c.typeSymbols[":"+name+".."] = TypeInfo{Kind: value.KindBraceList, Variadic: true}

	return TypeInfo{Kind: value.KindNone}, nil
}

func (c *Checker) resolveFilePath(path string) (string, error) {
	im := kernelmgr.NewImportManager(c.IncludePaths, c.WorkingDirectory)
	return im.ResolveFilePath(path)
}
