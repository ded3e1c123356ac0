// Package config carries ambient constants shared across the core,
// the kernel/import tooling, and the CLI frontend.
package config

// Version is the current sxs runtime version.
var Version = "0.1.0"

// SourceFileExt is the canonical SLP source extension.
const SourceFileExt = ".sxs"

// SourceFileExtensions are all recognized source file extensions.
var SourceFileExtensions = []string{".sxs", ".slp"}

// TrimSourceExt removes any recognized source extension from a filename.
// Returns the original string if no extension matches.
func TrimSourceExt(name string) string {
	for _, ext := range SourceFileExtensions {
		if len(name) >= len(ext) && name[len(name)-len(ext):] == ext {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// HasSourceExt returns true if the path ends with any recognized source extension.
func HasSourceExt(path string) bool {
	for _, ext := range SourceFileExtensions {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}

// ManifestFileName is the fixed name of a kernel's declaration manifest,
// searched for inside a kernel directory during #(load "kernel") resolution.
const ManifestFileName = "kernel.sxs"

// KernelPluginSuffix is the filename suffix a kernel manifest's library
// basename is expanded with when located via plugin.Open.
const KernelPluginSuffix = ".so"

// IsTestMode indicates the process is running under a test harness.
var IsTestMode = false

// Special-form names recognized by both the type checker and the
// interpreter's call-table dispatch (kept as named constants so the two
// phases can't drift out of agreement on spelling).
const (
	FormDef        = "def"
	FormFn         = "fn"
	FormIf         = "if"
	FormMatch      = "match"
	FormReflect    = "reflect"
	FormTry        = "try"
	FormRecover    = "recover"
	FormAssert     = "assert"
	FormEval       = "eval"
	FormApply      = "apply"
	FormCast       = "cast"
	FormDo         = "do"
	FormDone       = "done"
	FormAt         = "at"
	FormEq         = "eq"
	FormExport     = "export"
	FormDebug      = "debug"
)

// Datum-only directive names (dispatched through the separate datum table).
const (
	DatumImport     = "import"
	DatumLoad       = "load"
	DatumDefineForm = "define-form"
)

// Injected scope names.
const (
	ErrorBindingName     = "$error"
	ExceptionBindingName = "$exception"
	IterationsBindingName = "$iterations"
)
