package kernelmgr

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"

	"github.com/bosley/sxs/internal/config"
	"github.com/bosley/sxs/internal/value"
	"github.com/bosley/sxs/pkg/kernelapi"
)

// KernelManager resolves `#(load "name")` directives against a kernel
// directory layout: <dir>/<name>/kernel.sxs declares the kernel's function
// signatures (read during type-checking, before any native code runs) and
// <dir>/<name>/<library>.so, with <library> the name the manifest gives,
// is the Go plugin loaded at evaluation time.
//
// Grounded on pkg/core/kernels/kernels.{hpp,cpp} for the include-path
// search strategy (kernel_manager_c's constructor signature); its
// attempt_load body is a stub in the grounded source ("not yet
// implemented"), so the manifest format and plugin-loading sequence below
// follow spec.md's #(define-kernel ...) contract directly, using Go's
// stdlib plugin package in place of the stubbed dlopen call — no ecosystem
// library offers a supported alternative to plugin.Open for loading Go
// code compiled with -buildmode=plugin, and build.Import/go/packages (used
// elsewhere in this module, by cmd/sxs-kernel) only inspects source, it
// doesn't load compiled artifacts.
type KernelManager struct {
	IncludePaths     []string
	WorkingDirectory string

	loaded map[string]bool
}

// NewKernelManager returns a ready KernelManager.
func NewKernelManager(includePaths []string, workingDirectory string) *KernelManager {
	return &KernelManager{
		IncludePaths:     includePaths,
		WorkingDirectory: workingDirectory,
		loaded:           make(map[string]bool),
	}
}

// ResolveKernelDir finds the directory for a named kernel by trying each
// include path, then the working directory, matching ImportManager's
// search order.
func (k *KernelManager) ResolveKernelDir(name string) (string, error) {
	for _, include := range k.IncludePaths {
		candidate := filepath.Join(include, name)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, nil
		}
	}
	candidate := filepath.Join(k.WorkingDirectory, name)
	if st, err := os.Stat(candidate); err == nil && st.IsDir() {
		return candidate, nil
	}
	return "", fmt.Errorf("kernelmgr: no directory found for kernel %q", name)
}

// KernelManifest is the parsed form of a kernel.sxs declaration.
type KernelManifest struct {
	Name        string
	LibraryName string
	Functions   []ManifestFunc
}

// ManifestFunc is one `(define-function name (params) :ret)` entry.
type ManifestFunc struct {
	Name       string
	ParamKinds []value.Kind
	ReturnKind value.Kind
	Variadic   bool
}

// LoadManifest reads and parses <dir>/kernel.sxs, expecting the
// #(define-kernel name "library" (define-function ...) ...) DATUM form,
// with each define-function entry a direct child of the form.
func (k *KernelManager) LoadManifest(dir string) (*KernelManifest, error) {
	path := filepath.Join(dir, config.ManifestFileName)
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kernelmgr: reading manifest %q: %w", path, err)
	}

	root, perr := value.Parse(string(src))
	if perr != nil {
		return nil, fmt.Errorf("kernelmgr: parsing manifest %q: %w", path, perr)
	}

	if root.Kind() != value.KindDatum {
		return nil, fmt.Errorf("kernelmgr: manifest %q must be a single datum form", path)
	}
	form := root.Inner()
	if form.Kind() != value.KindParenList || form.List().Size() < 3 {
		return nil, fmt.Errorf("kernelmgr: manifest %q: malformed define-kernel form", path)
	}

	list := form.List()
	if list.At(0).AsSymbol() != "define-kernel" {
		return nil, fmt.Errorf("kernelmgr: manifest %q: expected define-kernel, got %q", path, list.At(0).AsSymbol())
	}

	manifest := &KernelManifest{
		Name:        list.At(1).AsSymbol(),
		LibraryName: list.At(2).Str().String(),
	}

	for i := 3; i < list.Size(); i++ {
		fnForm := list.At(i)
		fn, err := parseManifestFunc(fnForm)
		if err != nil {
			return nil, fmt.Errorf("kernelmgr: manifest %q: %w", path, err)
		}
		manifest.Functions = append(manifest.Functions, fn)
	}

	return manifest, nil
}

func parseManifestFunc(v value.Value) (ManifestFunc, error) {
	if v.Kind() != value.KindParenList || v.List().Size() < 3 {
		return ManifestFunc{}, fmt.Errorf("malformed define-function entry")
	}
	list := v.List()
	if list.At(0).AsSymbol() != "define-function" {
		return ManifestFunc{}, fmt.Errorf("expected define-function, got %q", list.At(0).AsSymbol())
	}

	fn := ManifestFunc{Name: list.At(1).AsSymbol()}

	paramsList := list.At(2).List()
	for i := 0; i < paramsList.Size(); i++ {
		name := paramsList.At(i).AsSymbol()
		if name == ".." {
			fn.Variadic = true
			continue
		}
		kind, err := TypeSymbolKind(name)
		if err != nil {
			return ManifestFunc{}, err
		}
		fn.ParamKinds = append(fn.ParamKinds, kind)
	}

	if list.Size() > 3 {
		retName := list.At(3).AsSymbol()
		kind, err := TypeSymbolKind(retName)
		if err != nil {
			return ManifestFunc{}, err
		}
		fn.ReturnKind = kind
	} else {
		fn.ReturnKind = value.KindNone
	}

	return fn, nil
}

// TypeSymbolKind maps a ":name" type symbol to a value.Kind, matching
// interpreter_c::initialize_type_map's base_types table. A symbol with a
// trailing ".." variadic marker is not recognized; in a kernel manifest a
// separate ".." parameter entry marks a function variadic instead.
func TypeSymbolKind(symbol string) (value.Kind, error) {
	switch symbol {
	case ":int":
		return value.KindInteger, nil
	case ":real":
		return value.KindReal, nil
	case ":symbol":
		return value.KindSymbol, nil
	case ":str":
		return value.KindString, nil
	case ":list-p":
		return value.KindParenList, nil
	case ":list-c":
		return value.KindBraceList, nil
	case ":list-b":
		return value.KindBracketList, nil
	case ":none", ":any":
		return value.KindNone, nil
	case ":some":
		return value.KindSome, nil
	case ":error":
		return value.KindError, nil
	case ":datum":
		return value.KindDatum, nil
	case ":aberrant":
		return value.KindAberrant, nil
	case ":list":
		return value.KindParenList, nil
	default:
		return value.KindNone, fmt.Errorf("unrecognized type symbol %q", symbol)
	}
}

// DeclareManifest registers every function in a manifest as a
// checker-visible (but not yet runtime-bound) signature.
func (k *KernelManager) DeclareManifest(reg *Registry, manifest *KernelManifest) error {
	for _, fn := range manifest.Functions {
		if err := reg.Declare(fn.Name, fn.ParamKinds, fn.ReturnKind, fn.Variadic); err != nil {
			return err
		}
	}
	return nil
}

// LoadNative opens <dir>/<manifest.LibraryName>.so, looks up its
// KernelInit symbol, and invokes it with a registry adapter and an
// APITable bound to the given value-construction/inspection callbacks,
// binding every function the plugin registers into reg.
func (k *KernelManager) LoadNative(dir string, manifest *KernelManifest, reg *Registry, api kernelapi.APITable) error {
	if k.loaded[manifest.Name] {
		return nil
	}

	libPath := filepath.Join(dir, manifest.LibraryName+config.KernelPluginSuffix)
	p, err := plugin.Open(libPath)
	if err != nil {
		return fmt.Errorf("kernelmgr: opening kernel plugin %q: %w", libPath, err)
	}

	sym, err := p.Lookup(kernelapi.InitFuncName)
	if err != nil {
		return fmt.Errorf("kernelmgr: kernel %q missing %s: %w", manifest.Name, kernelapi.InitFuncName, err)
	}

	initFn, ok := sym.(func(kernelapi.Registry, kernelapi.APITable))
	if !ok {
		return fmt.Errorf("kernelmgr: kernel %q's %s has the wrong signature", manifest.Name, kernelapi.InitFuncName)
	}

	adapter := &registryAdapter{reg: reg}
	initFn(adapter, api)

	k.loaded[manifest.Name] = true
	return nil
}

// registryAdapter implements kernelapi.Registry on top of Registry,
// translating the plugin-facing kernelapi.Kind into value.Kind and
// wrapping a kernelapi.Function into a NativeFunc over value.Value, since
// value.Value never crosses the plugin boundary directly (Object is
// opaque there).
type registryAdapter struct {
	reg *Registry
}

func (a *registryAdapter) Register(name string, fn kernelapi.Function, paramKinds []kernelapi.Kind, returnKind kernelapi.Kind, variadic bool) bool {
	kinds := make([]value.Kind, len(paramKinds))
	for i, k := range paramKinds {
		kinds[i] = value.Kind(k)
	}

	native := func(args []value.Value) value.Value {
		objArgs := make([]kernelapi.Object, len(args))
		for i, a := range args {
			objArgs[i] = kernelapi.Object(a)
		}
		result := fn(objArgs)
		v, _ := result.(value.Value)
		return v
	}

	if a.reg.Has(name) {
		return a.reg.Bind(name, native) == nil
	}
	return a.reg.Register(name, native, kinds, value.Kind(returnKind), variadic)
}
