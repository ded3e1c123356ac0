// Package kernelapi defines the ABI a native kernel plugin exchanges with
// the sxs runtime.
//
// Grounded on original_source/libs/pkg/kernel_api.h's C vtable
// (sxs_api_table_t + kernel_init entry point), translated into Go's
// plugin.Open/plugin.Lookup convention: a kernel is a package built with
// `go build -buildmode=plugin` that exports a single symbol, KernelInit,
// matching the InitFunc signature below. The runtime looks that symbol up
// after loading the .so and calls it once, passing a Registry the kernel
// uses to declare its functions and an APITable of construction/inspection
// callbacks it uses to build and read Values without importing
// internal/value directly (kernels live outside this module's internal/
// tree by construction, so the callback table is the only contract).
package kernelapi

// InitFuncName is the exported symbol every kernel plugin must define.
const InitFuncName = "KernelInit"

// InitFunc is the signature a kernel plugin's exported KernelInit symbol
// must satisfy.
type InitFunc func(registry Registry, api APITable)

// Object is an opaque handle to a runtime Value, passed across the plugin
// boundary. Kernels never construct or inspect it directly — they go
// through the APITable's accessor and constructor callbacks.
type Object interface{}

// Function is a native function body a kernel registers. It receives its
// evaluated argument list as one Object per positional parameter (the
// registry has already checked the declared arity) and returns the
// function's result.
type Function func(args []Object) Object

// Registry is the interface a kernel's KernelInit uses to declare its
// callable functions. Implemented by internal/kernelmgr so both the
// interpreter's runtime dispatch and the type checker's manifest-driven
// signatures share one registration surface, one-way-lockable after the
// first non-DATUM bracket-list element triggers the kernel lock.
type Registry interface {
	// Register adds a native function under name. variadic relaxes arity
	// checking to "at least len(paramKinds)". Kernels call this only from
	// inside KernelInit — after the registry locks, Register returns false.
	Register(name string, fn Function, paramKinds []Kind, returnKind Kind, variadic bool) bool
}

// Kind mirrors value.Kind across the plugin boundary without requiring a
// kernel to import internal/value (plugins build in their own module
// graph and can only share exported, non-internal types with the host).
type Kind uint32

const (
	KindNone Kind = iota
	KindSome
	KindInteger
	KindReal
	KindRune
	KindSymbol
	KindString
	KindParenList
	KindBracketList
	KindBraceList
	KindDatum
	KindError
	KindAberrant
)

// APITable is the set of construction and inspection callbacks a kernel
// uses to work with Objects, mirroring sxs_api_table_t's vtable of
// extern "C" function pointers as a Go struct of closures bound to the
// calling interpreter instance.
type APITable struct {
	Eval func(obj Object) Object

	GetKind  func(obj Object) Kind
	AsInt    func(obj Object) int64
	AsReal   func(obj Object) float64
	AsString func(obj Object) string
	AsSymbol func(obj Object) string

	ListSize func(obj Object) int
	ListAt   func(obj Object, index int) Object

	SomeHasValue func(obj Object) bool
	SomeGetValue func(obj Object) Object

	CreateInt        func(v int64) Object
	CreateReal       func(v float64) Object
	CreateString     func(v string) Object
	CreateSymbol     func(name string) Object
	CreateNone       func() Object
	CreateError      func(inner Object) Object
	CreateParenList  func(elems []Object) Object
	CreateBracketList func(elems []Object) Object
	CreateBraceList  func(elems []Object) Object
}
