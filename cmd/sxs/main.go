// Command sxs is the CLI frontend for the sxs runtime. It reads an
// optional sxs.yaml project file, merges flags, builds a pkg/sxsrt.Runtime
// for the requested entry file, and runs it.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/bosley/sxs/internal/config"
	"github.com/bosley/sxs/pkg/sxsrt"
)

// projectConfig mirrors the teacher's funxy.yaml shape, trimmed to the
// settings the sxs runtime actually consumes.
type projectConfig struct {
	IncludePaths []string `yaml:"include_paths"`
	KernelPaths  []string `yaml:"kernel_paths"`
}

// findProjectConfig walks up from dir looking for sxs.yaml, the way the
// teacher's ext.FindConfig walks up looking for funxy.yaml.
func findProjectConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "sxs.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func loadProjectConfig(path string) (*projectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg projectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func newLogger(useColor bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if useColor {
		// go-isatty only gates whether we attempt color; slog's text
		// handler has no color output of its own, so terminal detection
		// is surfaced via the "color" attribute kernels/CLI code can key
		// diagnostics formatting off of.
		return slog.New(slog.NewTextHandler(os.Stderr, opts)).With("color", true)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func main() {
	includePaths := flag.String("include", "", "comma-separated include paths for #(import)")
	workingDir := flag.String("dir", ".", "working directory for relative imports and kernels")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-include paths] [-dir path] <file.sxs>\n", os.Args[0])
		os.Exit(1)
	}
	entryFile := args[0]

	startDir := *workingDir
	if startDir == "" {
		startDir = "."
	}

	var cfg *projectConfig
	if cfgPath, err := findProjectConfig(startDir); err == nil && cfgPath != "" {
		cfg, err = loadProjectConfig(cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config error: %s\n", err)
			os.Exit(1)
		}
	}

	var paths []string
	if *includePaths != "" {
		paths = splitCommaList(*includePaths)
	}
	if cfg != nil {
		paths = append(paths, cfg.IncludePaths...)
		paths = append(paths, cfg.KernelPaths...)
	}

	useColor := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	logger := newLogger(useColor)

	logger.Info("starting", "entry", entryFile, "version", config.Version)

	rt := sxsrt.New(sxsrt.Options{
		FilePath:         entryFile,
		IncludePaths:     paths,
		WorkingDirectory: startDir,
		Logger:           logger,
	})

	os.Exit(rt.Run())
}

func splitCommaList(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
