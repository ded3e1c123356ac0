// Command sxs-kernel is a build helper for native sxs kernels. It
// inspects a kernel's Go package with golang.org/x/tools/go/packages to
// confirm it exports a two-parameter, no-result KernelInit before shelling out to
// `go build -buildmode=plugin`, the way the teacher's ext.Inspector
// confirms binding shapes before its own go build step.
package main

import (
	"fmt"
	"go/types"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/tools/go/packages"

	"github.com/bosley/sxs/internal/config"
	"github.com/bosley/sxs/pkg/kernelapi"
)

func main() {
	if len(os.Args) < 3 || os.Args[1] != "build" {
		fmt.Fprintf(os.Stderr, "usage: %s build <kernel-dir>\n", os.Args[0])
		os.Exit(1)
	}

	dir := os.Args[2]
	if err := inspectKernelDir(dir); err != nil {
		fmt.Fprintf(os.Stderr, "inspection failed: %s\n", err)
		os.Exit(1)
	}

	outPath := filepath.Join(dir, filepath.Base(dir)+config.KernelPluginSuffix)
	cmd := exec.Command("go", "build", "-buildmode=plugin", "-o", outPath, ".")
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("built %s\n", outPath)
}

// inspectKernelDir loads the kernel's Go package and confirms it exports
// a KernelInit function taking two parameters and returning nothing,
// catching a shape mismatch before spending a full go build on it. The
// parameter types are not checked against kernelapi.Registry and
// kernelapi.APITable.
func inspectKernelDir(dir string) error {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedSyntax,
		Dir:  dir,
	}

	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return fmt.Errorf("loading package at %s: %w", dir, err)
	}
	if len(pkgs) == 0 {
		return fmt.Errorf("no package found at %s", dir)
	}
	pkg := pkgs[0]
	for _, e := range pkg.Errors {
		return fmt.Errorf("%s: %s", pkg.PkgPath, e.Msg)
	}

	obj := pkg.Types.Scope().Lookup(kernelapi.InitFuncName)
	if obj == nil {
		return fmt.Errorf("package does not export %s", kernelapi.InitFuncName)
	}

	fn, ok := obj.(*types.Func)
	if !ok {
		return fmt.Errorf("%s is not a function", kernelapi.InitFuncName)
	}

	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Params().Len() != 2 || sig.Results().Len() != 0 {
		return fmt.Errorf("%s must have signature func(kernelapi.Registry, kernelapi.APITable)", kernelapi.InitFuncName)
	}

	return nil
}
