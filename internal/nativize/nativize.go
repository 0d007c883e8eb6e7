// Package nativize drives a complete build: it reads the method report,
// lowers the selected methods, transpiles them class by class in parallel,
// writes the header and source and optionally links the shared library.
package nativize

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/jinix-lang/jinix/internal/ast"
	"github.com/jinix-lang/jinix/internal/build"
	"github.com/jinix-lang/jinix/internal/cli"
	"github.com/jinix-lang/jinix/internal/codegen"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
	"github.com/jinix-lang/jinix/internal/javasrc"
	"github.com/jinix-lang/jinix/internal/report"
)

// Generated file names inside the output directory.
const (
	HeaderFile = "jinix.h"
	SourceFile = "jinix.cpp"
)

// Options configures a Nativizer.
type Options struct {
	SourceDir string
	// OutDir is removed and recreated by every build.
	OutDir  string
	Policy  codegen.Policy
	Workers int
	// Library is the base name of the shared library.
	Library string
	// Compile links the generated source when set.
	Compile   bool
	Toolchain build.NativeToolchain
	Platform  build.Platform
	// Runner executes the toolchain; ExecRunner when nil.
	Runner build.Runner
	// Cache holds generated sources keyed by inputs; disabled when nil.
	Cache build.Cache
	// Version is mixed into cache keys so upgrades regenerate.
	Version string
	Logger  *cli.Logger
}

// Result describes a finished build.
type Result struct {
	Header    string
	Source    string
	Library   string
	Classes   int
	Functions int
	Cached    bool
	Stats     build.Stats
	// Cache is the cache traffic so far; zero without a cache.
	Cache build.CacheStats
}

// Nativizer runs builds. A Nativizer is not safe for concurrent Run calls
// because they share the output directory.
type Nativizer struct {
	opts Options
	log  *cli.Logger
}

// New validates opts and fills in defaults.
func New(opts Options) (*Nativizer, error) {
	if opts.SourceDir == "" {
		return nil, jerrors.Invalid("source directory is required")
	}
	if err := checkOutDir(opts.OutDir, opts.SourceDir); err != nil {
		return nil, err
	}
	policy, err := codegen.ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	opts.Policy = policy
	if opts.Library == "" {
		opts.Library = "jinix"
	}
	if opts.Platform == (build.Platform{}) {
		opts.Platform = build.HostPlatform()
	}
	if opts.Runner == nil {
		opts.Runner = build.ExecRunner{}
	}
	if opts.Logger == nil {
		opts.Logger = cli.NewLogger(false, false)
	}
	return &Nativizer{opts: opts, log: opts.Logger}, nil
}

// checkOutDir refuses output directories whose cleaning would delete
// sources.
func checkOutDir(out, src string) error {
	if out == "" {
		return jerrors.Invalid("output directory is required")
	}
	absOut, err := filepath.Abs(out)
	if err != nil {
		return jerrors.External("output directory", err)
	}
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return jerrors.External("source directory", err)
	}
	if absOut == filepath.Dir(absOut) {
		return jerrors.Invalid("refusing to use filesystem root %s as output directory", absOut)
	}
	rel, err := filepath.Rel(absOut, absSrc)
	if err == nil && (rel == "." || !strings.HasPrefix(rel, "..")) {
		return jerrors.Invalid("output directory %s contains the sources %s", out, src)
	}
	return nil
}

// Scan builds a report from the @Nativize methods below dir.
func Scan(dir string) (*report.Report, error) {
	ix, err := javasrc.Load(os.DirFS(dir), ".")
	if err != nil {
		return nil, err
	}
	defer ix.Close()
	return report.FromIndex(ix), nil
}

// Run performs one build of the methods selected by rep.
func (n *Nativizer) Run(ctx context.Context, rep *report.Report) (*Result, error) {
	if rep.Len() == 0 {
		return nil, jerrors.Invalid("the report selects no methods")
	}
	key, err := n.cacheKey(rep)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Header: filepath.Join(n.opts.OutDir, HeaderFile),
		Source: filepath.Join(n.opts.OutDir, SourceFile),
	}

	if n.opts.Cache != nil {
		hit, err := n.restore(ctx, key, rep, res)
		if err != nil {
			return nil, err
		}
		if hit {
			n.cacheStats(res)
			return res, nil
		}
	}

	ix, err := javasrc.Load(os.DirFS(n.opts.SourceDir), ".")
	if err != nil {
		return nil, err
	}
	defer ix.Close()

	selected, err := selectMethods(ix, rep)
	if err != nil {
		return nil, err
	}

	tr := codegen.New(codegen.Options{Policy: n.opts.Policy})
	unit := codegen.NewUnit(tr.Options())
	plan, err := n.plan(ix, tr, unit, selected, key, res)
	if err != nil {
		return nil, err
	}

	_, stats, err := build.NewExecutor(n.opts.Workers).Execute(ctx, plan)
	res.Stats = stats
	if err != nil {
		return nil, err
	}
	res.Classes = len(selected)
	res.Functions = unit.Len()
	n.cacheStats(res)
	return res, nil
}

// restore serves a build from the cache. An entry that cannot be read or
// lacks a function count is dropped so the build regenerates it.
func (n *Nativizer) restore(ctx context.Context, key build.CacheKey, rep *report.Report, res *Result) (bool, error) {
	art, ok, err := n.opts.Cache.Get(key)
	if err == nil && !ok {
		return false, nil
	}
	var functions int
	if err == nil {
		functions, err = strconv.Atoi(art.Metadata["functions"])
	}
	if err == nil && (art.Files[HeaderFile] == nil || art.Files[SourceFile] == nil) {
		err = jerrors.Invariant("cache entry lacks %s or %s", HeaderFile, SourceFile)
	}
	if err != nil {
		n.log.Warn("dropping unreadable cache entry: %v", err)
		if err := n.opts.Cache.Invalidate(key); err != nil {
			n.log.Warn("invalidating cache entry: %v", err)
		}
		return false, nil
	}

	n.log.Info("generated sources are up to date")
	if err := n.writeOutputs(art.Files); err != nil {
		return false, err
	}
	res.Cached = true
	res.Classes = len(rep.ClassNames())
	res.Functions = functions
	if n.opts.Compile {
		lib, err := n.compile(ctx)
		if err != nil {
			return false, err
		}
		res.Library = lib
	}
	return true, nil
}

func (n *Nativizer) cacheStats(res *Result) {
	if n.opts.Cache == nil {
		return
	}
	res.Cache = n.opts.Cache.Stats()
	n.log.WithFields(map[string]interface{}{
		"hits":    res.Cache.Hits,
		"misses":  res.Cache.Misses,
		"entries": res.Cache.Entries,
		"bytes":   res.Cache.Bytes,
	}).Debug("cache")
}

// classMethods are the selected methods of one class.
type classMethods struct {
	class   string
	methods []*javasrc.Method
}

// selectMethods resolves the report against the index. Every overload of a
// selected name is included.
func selectMethods(ix *javasrc.Index, rep *report.Report) ([]classMethods, error) {
	var out []classMethods
	for _, name := range rep.ClassNames() {
		c := ix.Class(name)
		if c == nil {
			return nil, jerrors.Unresolved("class", name)
		}
		cm := classMethods{class: name}
		for _, want := range rep.Classes[name].Nativize {
			found := false
			for _, m := range c.Methods {
				if m.Name == want {
					cm.methods = append(cm.methods, m)
					found = true
				}
			}
			if !found {
				return nil, jerrors.Unresolved("method", name+"#"+want)
			}
		}
		out = append(out, cm)
	}
	return out, nil
}

// plan lays out one transpile target per class feeding a single emit
// target, followed by compile when requested.
func (n *Nativizer) plan(ix *javasrc.Index, tr *codegen.Transpiler, unit *codegen.Unit, classes []classMethods, key build.CacheKey, res *Result) (*build.Plan, error) {
	plan := build.NewPlan()
	// syntax trees are not safe for concurrent traversal
	var lowerMu sync.Mutex

	deps := make([]build.TargetID, 0, len(classes))
	for _, cm := range classes {
		id := build.TranspileTarget(cm.class)
		deps = append(deps, id)
		err := plan.AddTarget(build.Target{
			ID:     id,
			Weight: len(cm.methods),
			Action: func(ctx context.Context) error {
				decls := make([]*ast.MethodDecl, 0, len(cm.methods))
				lowerMu.Lock()
				for _, m := range cm.methods {
					decl, err := ix.Lower(m)
					if err != nil {
						lowerMu.Unlock()
						return err
					}
					decls = append(decls, decl)
				}
				lowerMu.Unlock()
				if err := ctx.Err(); err != nil {
					return err
				}
				fns, err := tr.TranspileClass(decls)
				if err != nil {
					return err
				}
				unit.Add(fns...)
				n.log.WithFields(map[string]interface{}{"class": cm.class, "methods": len(fns)}).Debug("transpiled")
				return nil
			},
		})
		if err != nil {
			return nil, err
		}
	}

	err := plan.AddTarget(build.Target{
		ID:   build.TargetEmit,
		Deps: deps,
		Action: func(context.Context) error {
			src, err := unit.Source(HeaderFile)
			if err != nil {
				return err
			}
			files := map[string][]byte{
				HeaderFile: []byte(unit.Header()),
				SourceFile: []byte(src),
			}
			if err := n.writeOutputs(files); err != nil {
				return err
			}
			n.log.Info("wrote %d functions to %s", unit.Len(), n.opts.OutDir)
			if n.opts.Cache != nil {
				art := build.Artifact{
					Files:    files,
					Metadata: map[string]string{"functions": strconv.Itoa(unit.Len()), "policy": string(n.opts.Policy)},
				}
				if err := n.opts.Cache.Put(key, art); err != nil {
					n.log.Warn("caching generated sources: %v", err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	if n.opts.Compile {
		err := plan.AddTarget(build.Target{
			ID:   build.TargetCompile,
			Deps: []build.TargetID{build.TargetEmit},
			Action: func(ctx context.Context) error {
				lib, err := n.compile(ctx)
				res.Library = lib
				return err
			},
		})
		if err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// cacheKey covers every input of code generation.
func (n *Nativizer) cacheKey(rep *report.Report) (build.CacheKey, error) {
	snap, err := build.SnapshotTree(n.opts.SourceDir, ".java")
	if err != nil {
		return "", err
	}
	data, err := rep.Marshal()
	if err != nil {
		return "", err
	}
	return build.KeyOf(n.opts.Version, string(n.opts.Policy), snap.Digest(), string(data)), nil
}

// writeOutputs recreates the output directory holding exactly files.
func (n *Nativizer) writeOutputs(files map[string][]byte) error {
	if err := os.RemoveAll(n.opts.OutDir); err != nil {
		return jerrors.External("clean "+n.opts.OutDir, err)
	}
	if err := os.MkdirAll(n.opts.OutDir, 0o755); err != nil {
		return jerrors.External("create "+n.opts.OutDir, err)
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(n.opts.OutDir, name), data, 0o644); err != nil {
			return jerrors.External("write "+name, err)
		}
	}
	return nil
}

// compile links the generated source into the shared library and returns
// its path.
func (n *Nativizer) compile(ctx context.Context) (string, error) {
	lib := filepath.Join(n.opts.OutDir, n.opts.Platform.SharedLibrary(n.opts.Library))
	spec, err := n.opts.Toolchain.SharedLibrary(n.opts.Platform, []string{filepath.Join(n.opts.OutDir, SourceFile)}, lib, nil)
	if err != nil {
		return "", err
	}
	n.log.Debug("running %s", spec)
	out, err := n.opts.Runner.Run(ctx, spec)
	if err != nil {
		return "", err
	}
	if msg := strings.TrimSpace(string(out)); msg != "" {
		n.log.Info("%s", msg)
	}
	n.log.Info("linked %s", lib)
	return lib, nil
}
