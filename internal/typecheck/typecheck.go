// Package typecheck implements the pre-execution type checker: a
// tree-walking pass over a parsed program that assigns every subform a
// TypeInfo, enforces each special form's arity/kind rules, and resolves
// imports/kernel manifests far enough to know the kind every imported or
// kernel-provided symbol will evaluate to at runtime.
//
// Grounded on original_source/apps/pkg/core/tcs/tcs.{hpp,cpp} (scope
// stack, type_symbol_map_, cycle-detection sets, the bulk of the special
// forms) layered with
// original_source/core/instructions/typechecking/typechecking.cpp (the
// do/done/at/eq/define-form handlers that tcs.cpp's variant omits —
// recovered here per spec.md's Loop context stack, which is unreachable
// without them).
package typecheck

import (
	"fmt"

	"github.com/bosley/sxs/internal/config"
	"github.com/bosley/sxs/internal/kernelmgr"
	"github.com/bosley/sxs/internal/value"
)

// TypeInfo is the checker's per-form result: a base kind, plus (for
// callables) a rendered lambda signature and the lambda id it refers to.
type TypeInfo struct {
	Kind            value.Kind
	LambdaSignature string
	Variadic        bool
	LambdaID        uint64
}

// FunctionSignature is a declared callable's full parameter/return shape,
// used for both user-defined functions (def/fn) and kernel-declared
// functions.
type FunctionSignature struct {
	Parameters []TypeInfo
	ReturnType TypeInfo
	Variadic   bool
}

// Checker walks a parsed program and reports the first error encountered.
type Checker struct {
	IncludePaths     []string
	WorkingDirectory string
	Registry         *kernelmgr.Registry

	scopes           []map[string]TypeInfo
	typeSymbols      map[string]TypeInfo
	formDefinitions  map[string][]value.Kind
	functionSigs     map[string]FunctionSignature
	lambdaSigs       map[uint64]FunctionSignature
	nextLambdaID     uint64
	checkedFiles     map[string]bool
	currentlyChecking map[string]bool
	checkStack       []string
	currentExports   map[string]TypeInfo
	loopDepth        int
}

// New returns a Checker with its base type-symbol map initialized and a
// single root scope pushed.
func New(includePaths []string, workingDirectory string, registry *kernelmgr.Registry) *Checker {
	c := &Checker{
		IncludePaths:      includePaths,
		WorkingDirectory:  workingDirectory,
		Registry:          registry,
		typeSymbols:       make(map[string]TypeInfo),
		formDefinitions:   make(map[string][]value.Kind),
		functionSigs:      make(map[string]FunctionSignature),
		lambdaSigs:        make(map[uint64]FunctionSignature),
		nextLambdaID:      1,
		checkedFiles:      make(map[string]bool),
		currentlyChecking: make(map[string]bool),
		currentExports:    make(map[string]TypeInfo),
	}
	c.initTypeMap()
	c.pushScope()
	return c
}

func (c *Checker) initTypeMap() {
	base := []struct {
		name string
		kind value.Kind
	}{
		{"int", value.KindInteger}, {"real", value.KindReal},
		{"symbol", value.KindSymbol}, {"str", value.KindString},
		{"list-p", value.KindParenList}, {"list-c", value.KindBraceList},
		{"list-b", value.KindBracketList}, {"none", value.KindNone},
		{"some", value.KindSome}, {"error", value.KindError},
		{"datum", value.KindDatum}, {"aberrant", value.KindAberrant},
		{"any", value.KindNone},
	}
	for _, b := range base {
		c.typeSymbols[":"+b.name] = TypeInfo{Kind: b.kind}
		c.typeSymbols[":"+b.name+".."] = TypeInfo{Kind: b.kind, Variadic: true}
	}
	c.typeSymbols[":list"] = TypeInfo{Kind: value.KindParenList}
	c.typeSymbols[":list.."] = TypeInfo{Kind: value.KindParenList, Variadic: true}
}

func (c *Checker) pushScope() { c.scopes = append(c.scopes, make(map[string]TypeInfo)) }

func (c *Checker) popScope() {
	if len(c.scopes) == 0 {
		return
	}
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *Checker) hasSymbol(name string, localOnly bool) bool {
	if localOnly {
		if len(c.scopes) == 0 {
			return false
		}
		_, ok := c.scopes[len(c.scopes)-1][name]
		return ok
	}
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if _, ok := c.scopes[i][name]; ok {
			return true
		}
	}
	return false
}

func (c *Checker) defineSymbol(name string, t TypeInfo) {
	if len(c.scopes) == 0 {
		return
	}
	c.scopes[len(c.scopes)-1][name] = t
}

func (c *Checker) symbolType(name string) (TypeInfo, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if t, ok := c.scopes[i][name]; ok {
			return t, true
		}
	}
	return TypeInfo{}, false
}

// isTypeSymbol recognizes both base type symbols and form-defined ":name"
// / ":name.." composite-type symbols registered by define-form.
func (c *Checker) isTypeSymbol(symbol string) (TypeInfo, bool) {
	if t, ok := c.typeSymbols[symbol]; ok {
		return t, true
	}
	if len(symbol) > 1 && symbol[0] == ':' {
		formName := symbol[1:]
		variadic := false
		if len(formName) > 2 && formName[len(formName)-2:] == ".." {
			formName = formName[:len(formName)-2]
			variadic = true
		}
		if _, ok := c.formDefinitions[formName]; ok {
			return TypeInfo{Kind: value.KindBraceList, Variadic: variadic}, true
		}
	}
	return TypeInfo{}, false
}

// typesMatch mirrors interpreter_c::is_symbol_enscribing_valid_type's
// sibling, types_match: a NONE expected kind (i.e. ":any", or a param with
// no declared kind) always matches; PAREN_LIST matches any PAREN_LIST
// regardless of lambda signature; otherwise kinds must match exactly.
func typesMatch(expected, actual TypeInfo) bool {
	if expected.Kind == value.KindNone {
		return true
	}
	if expected.Kind == value.KindParenList && actual.Kind == value.KindParenList {
		return true
	}
	return expected.Kind == actual.Kind
}

// CheckError reports a type error with the offending form's byte offset
// unavailable (the arena doesn't track source positions past parsing;
// spec.md's Non-goals exclude reporting with source spans for this
// reason) but with the offending special form named.
type CheckError struct {
	Form    string
	Message string
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("type error in %s: %s", e.Form, e.Message)
}

// Check runs the checker over a single parsed top-level object (typically
// a BRACKET_LIST of top-level forms) and returns its exported bindings.
func (c *Checker) Check(root value.Value) (map[string]TypeInfo, error) {
	if _, err := c.evalType(root); err != nil {
		return nil, err
	}
	return c.currentExports, nil
}

// evalType dispatches on a form's kind, descending into PAREN_LIST special
// forms and DATUM directives, and returning a literal's own kind for
// everything else.
func (c *Checker) evalType(v value.Value) (TypeInfo, error) {
	switch v.Kind() {
	case value.KindInteger, value.KindReal, value.KindString, value.KindRune:
		return TypeInfo{Kind: v.Kind()}, nil

	case value.KindSymbol:
		name := v.AsSymbol()
		if t, ok := c.isTypeSymbol(name); ok {
			return t, nil
		}
		if t, ok := c.symbolType(name); ok {
			return t, nil
		}
		return TypeInfo{}, &CheckError{Form: "symbol", Message: fmt.Sprintf("unknown symbol %q", name)}

	case value.KindSome:
		return c.evalType(v.Inner())

	case value.KindBracketList:
		list := v.List()
		var last TypeInfo
		for i := 0; i < list.Size(); i++ {
			t, err := c.evalType(list.At(i))
			if err != nil {
				return TypeInfo{}, err
			}
			last = t
		}
		return last, nil

	case value.KindBraceList:
		return TypeInfo{Kind: value.KindBraceList}, nil

	case value.KindDatum:
		return c.evalDatum(v.Inner())

	case value.KindParenList:
		return c.evalParenList(v)

	default:
		return TypeInfo{Kind: v.Kind()}, nil
	}
}

func (c *Checker) evalParenList(v value.Value) (TypeInfo, error) {
	list := v.List()
	if list.Empty() {
		return TypeInfo{Kind: value.KindParenList}, nil
	}

	head := list.At(0)
	if head.Kind() != value.KindSymbol {
		return TypeInfo{}, &CheckError{Form: "call", Message: "cannot call a non-symbol head"}
	}

	cmd := head.AsSymbol()

	if handler, ok := specialForms[cmd]; ok {
		return handler(c, list)
	}

	if c.Registry != nil {
		if desc, ok := c.Registry.Get(cmd); ok {
			return c.checkCallArity(cmd, desc.ParamKinds, desc.Variadic, desc.ReturnKind, list)
		}
	}

	if sig, ok := c.functionSigs[cmd]; ok {
		kinds := make([]value.Kind, len(sig.Parameters))
		for i, p := range sig.Parameters {
			kinds[i] = p.Kind
		}
		return c.checkCallArity(cmd, kinds, sig.Variadic, sig.ReturnType.Kind, list)
	}

	if t, ok := c.symbolType(cmd); ok && t.LambdaID != 0 {
		if sig, ok := c.lambdaSigs[t.LambdaID]; ok {
			kinds := make([]value.Kind, len(sig.Parameters))
			for i, p := range sig.Parameters {
				kinds[i] = p.Kind
			}
			return c.checkCallArity(cmd, kinds, sig.Variadic, sig.ReturnType.Kind, list)
		}
	}

	return TypeInfo{Kind: value.KindNone}, nil
}

func (c *Checker) checkCallArity(name string, paramKinds []value.Kind, variadic bool, returnKind value.Kind, list value.List) (TypeInfo, error) {
	argCount := list.Size() - 1
	if variadic {
		if argCount < len(paramKinds) {
			return TypeInfo{}, &CheckError{Form: name, Message: fmt.Sprintf("expects at least %d arguments, got %d", len(paramKinds), argCount)}
		}
	} else if argCount != len(paramKinds) {
		return TypeInfo{}, &CheckError{Form: name, Message: fmt.Sprintf("expects %d arguments, got %d", len(paramKinds), argCount)}
	}

	for i, expectedKind := range paramKinds {
		argType, err := c.evalType(list.At(i + 1))
		if err != nil {
			return TypeInfo{}, err
		}
		if expectedKind != value.KindNone && argType.Kind != expectedKind {
			return TypeInfo{}, &CheckError{Form: name, Message: fmt.Sprintf("argument %d: expected %s, got %s", i+1, expectedKind, argType.Kind)}
		}
	}

	return TypeInfo{Kind: returnKind}, nil
}

func (c *Checker) evalDatum(inner value.Value) (TypeInfo, error) {
	if inner.Kind() != value.KindParenList || inner.List().Empty() {
		return TypeInfo{Kind: value.KindDatum}, nil
	}
	list := inner.List()
	head := list.At(0)
	if head.Kind() != value.KindSymbol {
		return TypeInfo{Kind: value.KindDatum}, nil
	}

	switch head.AsSymbol() {
	case config.DatumImport:
		return c.handleImport(list)
	case config.DatumLoad:
		return c.handleLoad(list)
	case config.DatumDefineForm:
		return c.handleDefineForm(list)
	default:
		return TypeInfo{Kind: value.KindDatum}, nil
	}
}
