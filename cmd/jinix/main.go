// Package main provides the jinix command: it scans Java sources for
// @Nativize methods, transpiles them to JNI C++ and links the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jinix-lang/jinix/internal/build"
	"github.com/jinix-lang/jinix/internal/cli"
	"github.com/jinix-lang/jinix/internal/codegen"
	"github.com/jinix-lang/jinix/internal/nativize"
	"github.com/jinix-lang/jinix/internal/report"
)

const tool = "jinix"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	sub := os.Args[1]
	args := os.Args[2:]

	switch sub {
	case "help", "-h", "--help":
		help(args)
	case "version", "-v", "--version":
		jsonOutput := false
		for _, arg := range args {
			if arg == "--json" || arg == "-j" {
				jsonOutput = true
				break
			}
		}
		cli.PrintVersion(os.Stdout, tool, jsonOutput)
	case "scan":
		must(scan(args))
	case "transpile":
		must(runBuild("transpile", args, false))
	case "build":
		must(runBuild("build", args, true))
	case "watch":
		must(watch(args))
	case "config":
		must(config(args))
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", sub)
		usage()
		os.Exit(2)
	}
}

var commands = []cli.CommandInfo{
	{
		Name:        "scan",
		Usage:       "jinix scan [OPTIONS]",
		Description: "Write the method report from @Nativize annotations",
		Examples:    []string{"jinix scan --src src/main/java --report jinix-report.json"},
		Flags:       commonFlags,
	},
	{
		Name:        "transpile",
		Usage:       "jinix transpile [OPTIONS]",
		Description: "Generate jinix.h and jinix.cpp for the reported methods",
		Examples:    []string{"jinix transpile --policy global"},
		Flags:       commonFlags,
	},
	{
		Name:        "build",
		Usage:       "jinix build [OPTIONS]",
		Description: "Generate sources and link the JNI shared library",
		Examples:    []string{"JAVA_HOME=/usr/lib/jvm/java-17 jinix build --workers 4"},
		Flags:       append(append([]cli.FlagInfo(nil), commonFlags...), toolchainFlags...),
	},
	{
		Name:        "watch",
		Usage:       "jinix watch [OPTIONS]",
		Description: "Rebuild whenever sources or the report change",
		Examples:    []string{"jinix watch --compile"},
		Flags: append(append(append([]cli.FlagInfo(nil), commonFlags...), toolchainFlags...),
			cli.FlagInfo{Name: "compile", Usage: "Link the library after each rebuild"}),
	},
	{
		Name:        "config",
		Usage:       "jinix config init [OPTIONS]",
		Description: "Write the effective configuration to the config file",
		Examples:    []string{"jinix config init --policy global --cache .jinix-cache"},
		Flags: append(append(append([]cli.FlagInfo(nil), commonFlags...), toolchainFlags...),
			cli.FlagInfo{Name: "force", Usage: "Overwrite an existing config file"}),
	},
	{
		Name:        "version",
		Usage:       "jinix version [--json]",
		Description: "Show version information",
	},
}

var commonFlags = []cli.FlagInfo{
	{Name: "config", Usage: "Configuration file", Default: "jinix.json"},
	{Name: "src", Usage: "Root of the Java sources", Default: "."},
	{Name: "out", Usage: "Output directory, cleaned on every build", Default: ".jinix"},
	{Name: "report", Usage: "Method report file", Default: "jinix-report.json"},
	{Name: "policy", Usage: "Lookup placement: inline or global", Default: "inline"},
	{Name: "workers", Usage: "Parallel transpile workers (0 = all CPUs)", Default: "0"},
	{Name: "cache", Usage: "Directory caching generated sources"},
	{Name: "verbose", Usage: "Verbose output"},
	{Name: "debug", Usage: "Debug output"},
}

var toolchainFlags = []cli.FlagInfo{
	{Name: "compiler", Usage: "C++ compiler", Default: "g++"},
	{Name: "java-home", Usage: "JDK providing jni.h", Default: "$JAVA_HOME"},
	{Name: "lib", Usage: "Shared library base name", Default: "jinix"},
}

func usage() {
	cli.PrintUsage(os.Stderr, tool, commands)
}

func help(args []string) {
	if len(args) == 0 {
		cli.PrintUsage(os.Stdout, tool, commands)
		return
	}
	for _, c := range commands {
		if c.Name == args[0] {
			cli.PrintCommandUsage(os.Stdout, tool, c)
			return
		}
	}
	fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
	os.Exit(2)
}

// flags holds the raw command-line values; only those set explicitly
// override the configuration.
type flags struct {
	fs *flag.FlagSet

	config   string
	src      string
	out      string
	report   string
	policy   string
	workers  int
	cache    string
	verbose  bool
	debug    bool
	compiler string
	javaHome string
	lib      string
	compile  bool
	force    bool
}

func newFlags(name string, toolchain bool) *flags {
	f := &flags{fs: flag.NewFlagSet(name, flag.ExitOnError)}
	f.fs.StringVar(&f.config, "config", "jinix.json", "configuration file")
	f.fs.StringVar(&f.src, "src", "", "root of the Java sources")
	f.fs.StringVar(&f.out, "out", "", "output directory")
	f.fs.StringVar(&f.report, "report", "", "method report file")
	f.fs.StringVar(&f.policy, "policy", "", "lookup placement: inline or global")
	f.fs.IntVar(&f.workers, "workers", 0, "parallel transpile workers")
	f.fs.StringVar(&f.cache, "cache", "", "directory caching generated sources")
	f.fs.BoolVar(&f.verbose, "verbose", false, "verbose output")
	f.fs.BoolVar(&f.debug, "debug", false, "debug output")
	if toolchain {
		f.fs.StringVar(&f.compiler, "compiler", "", "C++ compiler")
		f.fs.StringVar(&f.javaHome, "java-home", "", "JDK providing jni.h")
		f.fs.StringVar(&f.lib, "lib", "", "shared library base name")
	}
	f.fs.Usage = func() {
		for _, c := range commands {
			if c.Name == name {
				cli.PrintCommandUsage(os.Stderr, tool, c)
			}
		}
	}
	return f
}

// load parses args and layers the explicit flags over the configuration.
func (f *flags) load(args []string) (*cli.Config, error) {
	_ = f.fs.Parse(args)
	if f.fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", f.fs.Args())
	}
	cfg, err := cli.LoadConfig(f.config)
	if err != nil {
		return nil, err
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "src":
			cfg.WorkDir = f.src
		case "out":
			cfg.OutDir = f.out
		case "report":
			cfg.Report = f.report
		case "policy":
			cfg.Policy = f.policy
		case "workers":
			cfg.Workers = f.workers
		case "cache":
			cfg.CacheDir = f.cache
		case "verbose":
			cfg.Verbose = f.verbose
		case "debug":
			cfg.Debug = f.debug
		case "compiler":
			cfg.Compiler = f.compiler
		case "java-home":
			cfg.JavaHome = f.javaHome
		case "lib":
			cfg.Library = f.lib
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func scan(args []string) error {
	f := newFlags("scan", false)
	cfg, err := f.load(args)
	if err != nil {
		return err
	}
	logger := cli.NewLogger(cfg.Verbose, cfg.Debug)

	fresh, err := nativize.Scan(cfg.WorkDir)
	if err != nil {
		return err
	}
	err = report.Update(cfg.Report, func(r *report.Report) error {
		*r = *fresh
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("selected %d methods in %d classes", fresh.Len(), len(fresh.ClassNames()))
	fmt.Printf("wrote %s (%d methods)\n", cfg.Report, fresh.Len())
	return nil
}

func nativizer(cfg *cli.Config, compile bool) (*nativize.Nativizer, error) {
	logger := cli.NewLogger(cfg.Verbose, cfg.Debug)
	opts := nativize.Options{
		SourceDir: cfg.WorkDir,
		OutDir:    cfg.OutDir,
		Policy:    codegen.Policy(cfg.Policy),
		Workers:   cfg.Workers,
		Library:   cfg.Library,
		Compile:   compile,
		Toolchain: build.NativeToolchain{Compiler: cfg.Compiler, JavaHome: cfg.JavaHome, DefaultFlags: []string{"-O2"}},
		Version:   cli.Version,
		Logger:    logger,
	}
	if cfg.CacheDir != "" {
		cache, err := build.NewFSCache(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		opts.Cache = cache
	}
	return nativize.New(opts)
}

func runBuild(name string, args []string, compile bool) error {
	f := newFlags(name, compile)
	cfg, err := f.load(args)
	if err != nil {
		return err
	}
	n, err := nativizer(cfg, compile)
	if err != nil {
		return err
	}
	rep, err := report.Load(cfg.Report)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := n.Run(ctx, rep)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func watch(args []string) error {
	f := newFlags("watch", true)
	f.fs.BoolVar(&f.compile, "compile", false, "link the library after each rebuild")
	cfg, err := f.load(args)
	if err != nil {
		return err
	}
	n, err := nativizer(cfg, f.compile)
	if err != nil {
		return err
	}
	reportPath, err := filepath.Abs(cfg.Report)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("watching %s and %s (Ctrl-C to stop)\n", cfg.WorkDir, cfg.Report)
	return n.Watch(ctx, reportPath, nativize.DefaultQuiet, func(res *nativize.Result, err error) {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		printResult(res)
	})
}

func config(args []string) error {
	if err := cli.ValidateArgs(args, 1, "jinix config init [OPTIONS]"); err != nil {
		return err
	}
	if args[0] != "init" {
		return fmt.Errorf("unknown config action %q (want init)", args[0])
	}
	f := newFlags("config", true)
	f.fs.BoolVar(&f.force, "force", false, "overwrite an existing config file")
	cfg, err := f.load(args[1:])
	if err != nil {
		return err
	}
	if err := cfg.InitConfig(f.config, f.force); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", f.config)
	return nil
}

func printResult(res *nativize.Result) {
	state := "generated"
	if res.Cached {
		state = "restored from cache"
	}
	fmt.Printf("%s %s and %s: %d functions in %d classes\n", state, res.Header, res.Source, res.Functions, res.Classes)
	if res.Library != "" {
		fmt.Printf("linked %s\n", res.Library)
	}
	if res.Cache != (build.CacheStats{}) {
		fmt.Printf("cache: %d hits, %d misses, %d entries\n", res.Cache.Hits, res.Cache.Misses, res.Cache.Entries)
	}
}

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
