// Package sxsrt is the host-visible entry point to the sxs runtime: it
// wires value.Parse, internal/typecheck, internal/interp, and
// internal/kernelmgr together into the New(Options)/Run() contract a CLI
// or embedding host calls.
//
// Grounded on original_source/pkg/core/core.{hpp,cpp}'s core_c: an
// option_s of file path, include paths, working directory, and logger,
// and a run() that returns a process-style exit code.
package sxsrt

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bosley/sxs/internal/interp"
	"github.com/bosley/sxs/internal/kernelmgr"
	"github.com/bosley/sxs/internal/typecheck"
	"github.com/bosley/sxs/internal/value"
)

// Options configures one Runtime invocation.
type Options struct {
	FilePath         string
	IncludePaths     []string
	WorkingDirectory string
	Logger           *slog.Logger
}

// Runtime is one configured, reusable instance of the sxs engine. A fresh
// Registry/ImportManager pair is created per Runtime so concurrent
// programs (e.g. the test suite) don't share kernel lock state.
type Runtime struct {
	opts     Options
	logger   *slog.Logger
	registry *kernelmgr.Registry
	imports  *kernelmgr.ImportManager
}

// New returns a Runtime ready to Run(). A nil Logger defaults to
// slog.Default().
func New(opts Options) *Runtime {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WorkingDirectory == "" {
		opts.WorkingDirectory = "."
	}

	r := &Runtime{
		opts:     opts,
		logger:   logger,
		registry: kernelmgr.NewRegistry(),
		imports:  kernelmgr.NewImportManager(opts.IncludePaths, opts.WorkingDirectory),
	}
	r.imports.EvalFile = r.evalFileForImport
	return r
}

// Run type-checks and then evaluates the runtime's configured file path,
// logging a failure and returning a non-zero exit code on error.
func (r *Runtime) Run() int {
	src, err := os.ReadFile(r.opts.FilePath)
	if err != nil {
		r.logger.Error("failed to read source file", "path", r.opts.FilePath, "error", err)
		return 1
	}

	if _, err := r.evalSource(string(src)); err != nil {
		r.logger.Error("program failed", "path", r.opts.FilePath, "error", err)
		return 1
	}

	return 0
}

// RunSource type-checks and evaluates source directly, returning its
// final value (for embedding hosts and tests that don't want a file on
// disk).
func (r *Runtime) RunSource(source string) (value.Value, error) {
	return r.evalSource(source)
}

func (r *Runtime) evalSource(source string) (value.Value, error) {
	root, perr := value.Parse(source)
	if perr != nil {
		return value.Value{}, fmt.Errorf("parse error: %w", perr)
	}

	checker := typecheck.New(r.opts.IncludePaths, r.opts.WorkingDirectory, r.registry)
	if _, err := checker.Check(root); err != nil {
		return value.Value{}, fmt.Errorf("type error: %w", err)
	}

	interpreter := interp.New(r.registry, r.imports, r.opts.IncludePaths, r.opts.WorkingDirectory, r.logger)
	result, err := interpreter.Eval(root)
	if err != nil {
		return value.Value{}, fmt.Errorf("runtime error: %w", err)
	}

	return result, nil
}

// evalFileForImport is the ImportManager.EvalFile callback: it runs a full
// check+eval pass over path and returns its exported bindings, letting
// #(import ...) compose with the same registry and import manager the
// top-level program uses (so transitive imports still see one shared
// kernel lock and one shared cycle-detection set).
func (r *Runtime) evalFileForImport(path string) (map[string]value.Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading import %q: %w", path, err)
	}

	root, perr := value.Parse(string(src))
	if perr != nil {
		return nil, fmt.Errorf("parsing import %q: %w", path, perr)
	}

	checker := typecheck.New(r.opts.IncludePaths, r.opts.WorkingDirectory, r.registry)
	if _, err := checker.Check(root); err != nil {
		return nil, fmt.Errorf("type error in import %q: %w", path, err)
	}

	interpreter := interp.New(r.registry, r.imports, r.opts.IncludePaths, r.opts.WorkingDirectory, r.logger)
	if _, err := interpreter.Eval(root); err != nil {
		return nil, fmt.Errorf("runtime error in import %q: %w", path, err)
	}

	return interpreter.Exports(), nil
}
