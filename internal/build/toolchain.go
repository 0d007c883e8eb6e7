package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

// Platform is the host the shared library is built for.
type Platform struct {
	GOOS   string
	GOARCH string
}

func (p Platform) String() string { return p.GOOS + "/" + p.GOARCH }

var supportedPlatforms = map[string]bool{
	"linux/amd64":   true,
	"linux/arm64":   true,
	"darwin/amd64":  true,
	"darwin/arm64":  true,
	"windows/amd64": true,
	"windows/arm64": true,
}

// Validate rejects platforms without a known JNI layout.
func (p Platform) Validate() error {
	if p.GOOS == "" || p.GOARCH == "" {
		return jerrors.Invalid("GOOS/GOARCH must be non-empty")
	}
	if !supportedPlatforms[p.String()] {
		return jerrors.Invalid("unsupported target platform: %s", p)
	}
	return nil
}

// JNIIncludeDir is the platform subdirectory of $JAVA_HOME/include holding
// jni_md.h.
func (p Platform) JNIIncludeDir() string {
	if p.GOOS == "windows" {
		return "win32"
	}
	return p.GOOS
}

// SharedLibrary returns the file name System.loadLibrary(base) looks for.
func (p Platform) SharedLibrary(base string) string {
	switch p.GOOS {
	case "windows":
		return base + ".dll"
	case "darwin":
		return "lib" + base + ".dylib"
	}
	return "lib" + base + ".so"
}

// HostPlatform returns the running platform.
func HostPlatform() Platform { return Platform{GOOS: runtime.GOOS, GOARCH: runtime.GOARCH} }

// CommandSpec describes a command for a Runner.
type CommandSpec struct {
	Env     map[string]string
	WorkDir string
	Cmd     string
	Args    []string
}

func (c CommandSpec) String() string {
	return strings.TrimSpace(c.Cmd + " " + strings.Join(c.Args, " "))
}

// NativeToolchain builds the generated C++ into a JNI shared library.
type NativeToolchain struct {
	Compiler     string   // defaults to g++
	JavaHome     string   // root of the JDK providing jni.h
	DefaultFlags []string // e.g. ["-O2"]
}

// SharedLibrary returns the command compiling and linking sources into
// output for target.
func (tc NativeToolchain) SharedLibrary(target Platform, sources []string, output string, extraFlags []string) (CommandSpec, error) {
	if err := target.Validate(); err != nil {
		return CommandSpec{}, err
	}
	if tc.JavaHome == "" {
		return CommandSpec{}, jerrors.Invalid("java home is not set")
	}
	if len(sources) == 0 {
		return CommandSpec{}, jerrors.Invalid("no sources to compile")
	}
	compiler := tc.Compiler
	if compiler == "" {
		compiler = "g++"
	}
	include := filepath.Join(tc.JavaHome, "include")
	args := []string{"-shared", "-std=c++17"}
	if target.GOOS != "windows" {
		args = append(args, "-fPIC")
	}
	args = append(args, "-I"+include, "-I"+filepath.Join(include, target.JNIIncludeDir()))
	args = append(args, tc.DefaultFlags...)
	args = append(args, extraFlags...)
	args = append(args, "-o", output)
	args = append(args, sources...)
	return CommandSpec{Cmd: compiler, Args: args, Env: map[string]string{"JAVA_HOME": tc.JavaHome}}, nil
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, spec CommandSpec) ([]byte, error)
}

// ExecRunner runs commands as child processes. A failing command's
// standard error is part of the returned error.
type ExecRunner struct{}

// Run executes spec and returns its standard output.
func (ExecRunner) Run(ctx context.Context, spec CommandSpec) ([]byte, error) {
	cmd := exec.CommandContext(ctx, spec.Cmd, spec.Args...)
	cmd.Dir = spec.WorkDir
	if len(spec.Env) > 0 {
		cmd.Env = os.Environ()
		keys := make([]string, 0, len(spec.Env))
		for k := range spec.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Env = append(cmd.Env, k+"="+spec.Env[k])
		}
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, jerrors.External(spec.Cmd, err)
		}
		return nil, jerrors.External(spec.Cmd, fmt.Errorf("%w\n%s", err, msg))
	}
	return stdout.Bytes(), nil
}
