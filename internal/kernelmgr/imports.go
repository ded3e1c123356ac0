package kernelmgr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bosley/sxs/internal/value"
)

// EvalFileFunc runs a complete type-check + interpret pass over the file
// at path and returns its exported bindings. Supplied by the composing
// layer (pkg/sxsrt) rather than called directly by internal/typecheck or
// internal/interp, since those packages must not import kernelmgr (which
// would need to import them back to run an import) — the same role
// set_parent_context plays in the grounded imports_manager_c, wiring a
// forward reference to the interpreter without a compile-time dependency
// cycle.
type EvalFileFunc func(path string) (map[string]value.Value, error)

// ImportManager resolves `#(import symbol "path")` directives: it
// canonicalizes the target file against a search path, detects import
// cycles, evaluates the file at most once per canonical path, and clones
// its exported bindings into the importer's scope under a "prefix/name"
// key.
//
// Grounded on pkg/core/imports/imports.{hpp,cpp}'s imports_manager_c:
// resolve_file_path's absolute → include-path → working-directory search
// order, and the currently_importing_/imported_files_ pair used for cycle
// detection (the import_guard_c RAII wrapper becomes a defer in Go).
type ImportManager struct {
	IncludePaths     []string
	WorkingDirectory string
	EvalFile         EvalFileFunc

	locked             bool
	importedFiles      map[string]map[string]value.Value
	currentlyImporting map[string]bool
	importStack        []string
}

// NewImportManager returns a ready ImportManager. EvalFile must be set
// before the first AttemptImport call.
func NewImportManager(includePaths []string, workingDirectory string) *ImportManager {
	return &ImportManager{
		IncludePaths:       includePaths,
		WorkingDirectory:   workingDirectory,
		importedFiles:      make(map[string]map[string]value.Value),
		currentlyImporting: make(map[string]bool),
	}
}

// ResolveFilePath canonicalizes filePath: absolute paths are used as-is;
// relative paths are tried against each include path in order, then
// against the working directory, matching the grounded resolve_file_path.
func (m *ImportManager) ResolveFilePath(filePath string) (string, error) {
	if filepath.IsAbs(filePath) {
		return filepath.Clean(filePath), nil
	}

	for _, include := range m.IncludePaths {
		candidate := filepath.Join(include, filePath)
		if _, err := os.Stat(candidate); err == nil {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return "", fmt.Errorf("kernelmgr: resolving %q: %w", candidate, err)
			}
			return abs, nil
		}
	}

	candidate := filepath.Join(m.WorkingDirectory, filePath)
	abs, err := filepath.Abs(candidate)
	if err != nil {
		return "", fmt.Errorf("kernelmgr: resolving %q: %w", candidate, err)
	}
	return abs, nil
}

// Lock forbids further imports; spec.md's kernel-lock rule applies equally
// to imports once program execution has begun.
func (m *ImportManager) Lock() { m.locked = true }

// IsImportAllowed reports whether new imports may still be attempted.
func (m *ImportManager) IsImportAllowed() bool { return !m.locked }

// AttemptImport resolves filePath, detects import cycles, evaluates the
// file (via EvalFile) at most once, and returns its exported bindings
// cloned and ready to install under "symbol/" + export-name in the
// importer's scope.
func (m *ImportManager) AttemptImport(symbol, filePath string) (map[string]value.Value, error) {
	if m.locked {
		return nil, fmt.Errorf("kernelmgr: imports locked")
	}

	canonical, err := m.ResolveFilePath(filePath)
	if err != nil {
		return nil, err
	}

	if m.currentlyImporting[canonical] {
		return nil, fmt.Errorf("kernelmgr: import cycle detected at %q", canonical)
	}

	if exports, ok := m.importedFiles[canonical]; ok {
		return cloneExports(exports), nil
	}

	if m.EvalFile == nil {
		return nil, fmt.Errorf("kernelmgr: no evaluator wired for import of %q", canonical)
	}

	m.currentlyImporting[canonical] = true
	m.importStack = append(m.importStack, canonical)
	defer func() {
		delete(m.currentlyImporting, canonical)
		m.importStack = m.importStack[:len(m.importStack)-1]
	}()

	exports, err := m.EvalFile(canonical)
	if err != nil {
		return nil, fmt.Errorf("kernelmgr: importing %q as %q: %w", canonical, symbol, err)
	}

	m.importedFiles[canonical] = exports
	return cloneExports(exports), nil
}

func cloneExports(exports map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(exports))
	for name, v := range exports {
		out[name] = v.Clone()
	}
	return out
}
