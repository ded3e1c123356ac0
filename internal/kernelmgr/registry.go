// Package kernelmgr implements the import and native-kernel machinery
// shared, in concept, by the type checker and the interpreter: a single
// Registry of callable descriptors (consulted by the checker for arity and
// kind checking, and by the interpreter for the native function pointer to
// invoke), an ImportManager that resolves and clones `#(import ...)`
// exports, and a KernelManager that resolves, parses, and loads
// `#(load ...)` native plugins.
//
// Grounded on original_source/pkg/core/imports/imports.{hpp,cpp} and
// pkg/core/kernels/kernels.{hpp,cpp} (a stub in the grounded source — its
// attempt_load throws "not yet implemented" — so the native loading path
// here is original work built to spec.md's §4 contract, using Go's
// plugin.Open in place of the C++ project's dlopen-backed design).
package kernelmgr

import (
	"fmt"
	"sync"

	"github.com/bosley/sxs/internal/value"
)

// FuncDescriptor is one registered callable's signature plus, once a
// native kernel has loaded, the function to invoke.
type FuncDescriptor struct {
	Name       string
	ParamKinds []value.Kind
	ReturnKind value.Kind
	Variadic   bool
	Native     NativeFunc
}

// NativeFunc is a native kernel function bound into the registry after
// plugin.Open, taking already-evaluated argument values.
type NativeFunc func(args []value.Value) value.Value

// Registry is the kernel function table. It starts unlocked so a
// kernel.sxs manifest can populate checker-facing signatures during
// type-checking; the interpreter triggers Lock() on the first non-DATUM
// element it evaluates inside a BRACKET_LIST (spec.md's "first use of the
// program commits the kernel set" rule), after which Register refuses
// further additions.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]*FuncDescriptor
	locked    bool
}

// NewRegistry returns an empty, unlocked Registry.
func NewRegistry() *Registry {
	return &Registry{functions: make(map[string]*FuncDescriptor)}
}

// Declare adds a checker-facing signature without a native binding (used
// while parsing a kernel.sxs manifest, before the library itself loads).
// Returns an error if locked or if name is already declared.
func (r *Registry) Declare(name string, paramKinds []value.Kind, returnKind value.Kind, variadic bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return fmt.Errorf("kernelmgr: registry locked, cannot declare %q", name)
	}
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("kernelmgr: function %q already declared", name)
	}
	r.functions[name] = &FuncDescriptor{
		Name:       name,
		ParamKinds: paramKinds,
		ReturnKind: returnKind,
		Variadic:   variadic,
	}
	return nil
}

// Bind attaches a native implementation to an already-declared signature
// (called once the kernel's shared library has been plugin.Open'd).
func (r *Registry) Bind(name string, fn NativeFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return fmt.Errorf("kernelmgr: registry locked, cannot bind %q", name)
	}
	desc, ok := r.functions[name]
	if !ok {
		return fmt.Errorf("kernelmgr: cannot bind undeclared function %q", name)
	}
	desc.Native = fn
	return nil
}

// Register declares and binds in one step; used by kernels that register
// directly through the kernelapi.Registry interface rather than via a
// kernel.sxs manifest (e.g. kernels with no checker-visible signature
// beyond "any").
func (r *Registry) Register(name string, fn NativeFunc, paramKinds []value.Kind, returnKind value.Kind, variadic bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return false
	}
	if _, exists := r.functions[name]; exists {
		return false
	}
	r.functions[name] = &FuncDescriptor{
		Name:       name,
		ParamKinds: paramKinds,
		ReturnKind: returnKind,
		Variadic:   variadic,
		Native:     fn,
	}
	return true
}

// Lock freezes the registry; further Declare/Register/Bind calls fail.
func (r *Registry) Lock() {
	r.mu.Lock()
	r.locked = true
	r.mu.Unlock()
}

// Locked reports whether the registry has been frozen.
func (r *Registry) Locked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locked
}

// Has reports whether name is a known function (declared, bound, or
// both).
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.functions[name]
	return ok
}

// Get returns the descriptor for name.
func (r *Registry) Get(name string) (*FuncDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.functions[name]
	return d, ok
}
