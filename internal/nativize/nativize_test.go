package nativize

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/jinix-lang/jinix/internal/build"
	"github.com/jinix-lang/jinix/internal/cli"
	"github.com/jinix-lang/jinix/internal/codegen"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
	"github.com/jinix-lang/jinix/internal/report"
)

const dummySource = `package demo;

public class Dummy {
    int a;

    @Nativize
    public int withParams(int x, int y, int z) {
        return x + y * z;
    }

    @Nativize
    public long withParams(long x) {
        return x;
    }

    @Nativize
    public void calls() {
        thisCall();
        this.call();
    }

    void thisCall() {}

    void call() {}
}
`

var linux = build.Platform{GOOS: "linux", GOARCH: "amd64"}

// project writes the fixture sources and returns the source and output
// directories.
func project(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	if err := os.MkdirAll(filepath.Join(src, "demo"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "demo", "Dummy.java"), []byte(dummySource), 0o644); err != nil {
		t.Fatal(err)
	}
	return src, filepath.Join(root, ".jinix")
}

func newNativizer(t *testing.T, opts Options) *Nativizer {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = cli.NewLoggerTo(&strings.Builder{}, false, false)
	}
	n, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func dummyReport(methods ...string) *report.Report {
	rep := report.New()
	for _, m := range methods {
		rep.Add("demo.Dummy", "demo/Dummy.java", m)
	}
	return rep
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestScan(t *testing.T) {
	src, _ := project(t)
	rep, err := Scan(src)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.Selects("demo.Dummy", "withParams") || !rep.Selects("demo.Dummy", "calls") {
		t.Fatalf("report = %+v", rep.Classes)
	}
	if rep.Selects("demo.Dummy", "thisCall") {
		t.Error("unannotated method selected")
	}
}

func TestRunWritesHeaderAndSource(t *testing.T) {
	src, out := project(t)
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(out, "stale.cpp")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	n := newNativizer(t, Options{SourceDir: src, OutDir: out, Workers: 2})
	res, err := n.Run(context.Background(), dummyReport("withParams", "calls"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Classes != 1 || res.Functions != 3 || res.Cached || res.Library != "" {
		t.Fatalf("result = %+v", res)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("output directory was not cleaned")
	}

	header := readFile(t, res.Header)
	for _, want := range []string{
		"JNIEXPORT jint JNICALL Java_demo_Dummy_withParams__III(JNIEnv *, jobject, jint, jint, jint);",
		"JNIEXPORT jlong JNICALL Java_demo_Dummy_withParams__J(JNIEnv *, jobject, jlong);",
		"JNIEXPORT void JNICALL Java_demo_Dummy_calls(JNIEnv *, jobject);",
	} {
		if !strings.Contains(header, want) {
			t.Errorf("header lacks %q\n%s", want, header)
		}
	}

	source := readFile(t, res.Source)
	if !strings.HasPrefix(source, `#include "jinix.h"`) {
		t.Errorf("source does not include the header:\n%s", source)
	}
	if n := strings.Count(source, "env->FindClass("); n != 1 {
		t.Errorf("class looked up %d times\n%s", n, source)
	}
	if n := strings.Count(source, "env->CallVoidMethod(thisObject, "); n != 2 {
		t.Errorf("%d instance calls\n%s", n, source)
	}
	if strings.Contains(source, "JNI_OnLoad") {
		t.Error("inline policy emitted JNI_OnLoad")
	}
}

func TestRunGlobalPolicy(t *testing.T) {
	src, out := project(t)
	n := newNativizer(t, Options{SourceDir: src, OutDir: out, Policy: codegen.PolicyGlobal})
	res, err := n.Run(context.Background(), dummyReport("calls"))
	if err != nil {
		t.Fatal(err)
	}
	source := readFile(t, res.Source)
	for _, want := range []string{"static jclass class_demo_Dummy;", "JNI_OnLoad", "jinix_init(env);"} {
		if !strings.Contains(source, want) {
			t.Errorf("source lacks %q\n%s", want, source)
		}
	}
}

func TestRunCompiles(t *testing.T) {
	src, out := project(t)
	ctrl := gomock.NewController(t)
	runner := NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, spec build.CommandSpec) ([]byte, error) {
		cmd := spec.String()
		for _, want := range []string{"g++ -shared", "-I/opt/jdk/include/linux", "-o " + filepath.Join(out, "libjinix.so"), filepath.Join(out, SourceFile)} {
			if !strings.Contains(cmd, want) {
				t.Errorf("command %q lacks %q", cmd, want)
			}
		}
		if _, err := os.Stat(filepath.Join(out, SourceFile)); err != nil {
			t.Errorf("compiled before the source was written: %v", err)
		}
		return nil, nil
	}).Times(1)

	n := newNativizer(t, Options{
		SourceDir: src,
		OutDir:    out,
		Compile:   true,
		Toolchain: build.NativeToolchain{JavaHome: "/opt/jdk"},
		Platform:  linux,
		Runner:    runner,
	})
	res, err := n.Run(context.Background(), dummyReport("withParams"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Library != filepath.Join(out, "libjinix.so") {
		t.Errorf("library = %q", res.Library)
	}
	if res.Stats.Succeeded != 3 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestRunCompileFailure(t *testing.T) {
	src, out := project(t)
	ctrl := gomock.NewController(t)
	runner := NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).
		Return(nil, jerrors.External("g++", errors.New("jinix.cpp:4: error: expected ';'")))

	n := newNativizer(t, Options{
		SourceDir: src,
		OutDir:    out,
		Compile:   true,
		Toolchain: build.NativeToolchain{JavaHome: "/opt/jdk"},
		Platform:  linux,
		Runner:    runner,
	})
	_, err := n.Run(context.Background(), dummyReport("calls"))
	if !jerrors.IsCategory(err, jerrors.CategoryExternal) || !strings.Contains(err.Error(), "expected ';'") {
		t.Fatalf("error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, HeaderFile)); err != nil {
		t.Errorf("header missing after failed link: %v", err)
	}
}

func TestRunUsesCache(t *testing.T) {
	src, out := project(t)
	cache, err := build.NewFSCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	n := newNativizer(t, Options{SourceDir: src, OutDir: out, Cache: cache, Version: "test"})
	rep := dummyReport("withParams", "calls")

	first, err := n.Run(context.Background(), rep)
	if err != nil {
		t.Fatal(err)
	}
	want := readFile(t, first.Source)

	second, err := n.Run(context.Background(), rep)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || !second.Cached || second.Functions != first.Functions {
		t.Fatalf("first = %+v, second = %+v", first, second)
	}
	if got := readFile(t, second.Source); got != want {
		t.Errorf("cached source differs:\n%s", got)
	}
	if first.Cache.Misses != 1 || second.Cache.Hits != 1 || second.Cache.Entries != 1 {
		t.Errorf("cache stats: first = %+v, second = %+v", first.Cache, second.Cache)
	}

	edited := strings.Replace(dummySource, "x + y * z", "x * y + z", 1)
	if err := os.WriteFile(filepath.Join(src, "demo", "Dummy.java"), []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	third, err := n.Run(context.Background(), rep)
	if err != nil {
		t.Fatal(err)
	}
	if third.Cached {
		t.Error("edited source served from cache")
	}
}

func TestRunDropsCorruptCacheEntry(t *testing.T) {
	src, out := project(t)
	cache, err := build.NewFSCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	n := newNativizer(t, Options{SourceDir: src, OutDir: out, Cache: cache, Version: "test"})
	rep := dummyReport("withParams", "calls")
	key, err := n.cacheKey(rep)
	if err != nil {
		t.Fatal(err)
	}
	stale := build.Artifact{
		Files:    map[string][]byte{HeaderFile: []byte("stale"), SourceFile: []byte("stale")},
		Metadata: map[string]string{"functions": "many"},
	}
	if err := cache.Put(key, stale); err != nil {
		t.Fatal(err)
	}

	res, err := n.Run(context.Background(), rep)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached || res.Functions != 3 {
		t.Fatalf("result = %+v", res)
	}
	if got := readFile(t, res.Source); got == "stale" {
		t.Error("corrupt entry was served")
	}
	art, ok, err := cache.Get(key)
	if err != nil || !ok || art.Metadata["functions"] != "3" {
		t.Errorf("cache entry after rebuild = %v, %v, %v", art.Metadata, ok, err)
	}

	again, err := n.Run(context.Background(), rep)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Cached || again.Functions != 3 {
		t.Errorf("rebuilt entry not served: %+v", again)
	}
}

func TestRunResolutionErrors(t *testing.T) {
	src, out := project(t)
	n := newNativizer(t, Options{SourceDir: src, OutDir: out})

	if _, err := n.Run(context.Background(), dummyReport("missing")); !jerrors.IsCategory(err, jerrors.CategoryResolution) {
		t.Errorf("unknown method error = %v", err)
	}
	rep := report.New()
	rep.Add("demo.Ghost", "demo/Ghost.java", "run")
	if _, err := n.Run(context.Background(), rep); !jerrors.IsCategory(err, jerrors.CategoryResolution) {
		t.Errorf("unknown class error = %v", err)
	}
	if _, err := n.Run(context.Background(), report.New()); !jerrors.IsCategory(err, jerrors.CategoryValidation) {
		t.Errorf("empty report error = %v", err)
	}
}

func TestNewRejectsOutputDirectories(t *testing.T) {
	src, _ := project(t)
	for _, out := range []string{"", src, filepath.Dir(src), "/"} {
		if _, err := New(Options{SourceDir: src, OutDir: out}); !jerrors.IsCategory(err, jerrors.CategoryValidation) {
			t.Errorf("out dir %q: error = %v", out, err)
		}
	}
	if _, err := New(Options{SourceDir: src, OutDir: filepath.Join(src, ".jinix")}); err != nil {
		t.Errorf("nested out dir rejected: %v", err)
	}
	if _, err := New(Options{SourceDir: src, OutDir: "out", Policy: "sometimes"}); !jerrors.IsCategory(err, jerrors.CategoryValidation) {
		t.Errorf("bad policy error = %v", err)
	}
}

func TestWatchRebuildsOnChange(t *testing.T) {
	src, out := project(t)
	reportPath := filepath.Join(t.TempDir(), "jinix-report.json")
	if err := report.Save(reportPath, dummyReport("withParams")); err != nil {
		t.Fatal(err)
	}
	n := newNativizer(t, Options{SourceDir: src, OutDir: out})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	type outcome struct {
		res *Result
		err error
	}
	results := make(chan outcome, 4)
	stopped := make(chan error, 1)
	go func() {
		stopped <- n.Watch(ctx, reportPath, 50*time.Millisecond, func(res *Result, err error) {
			results <- outcome{res, err}
		})
	}()

	next := func() outcome {
		t.Helper()
		select {
		case o := <-results:
			return o
		case <-time.After(5 * time.Second):
			t.Fatal("no build")
			return outcome{}
		}
	}
	if o := next(); o.err != nil || o.res.Functions != 2 {
		t.Fatalf("initial build = %+v, %v", o.res, o.err)
	}

	if err := report.Save(reportPath, dummyReport("withParams", "calls")); err != nil {
		t.Fatal(err)
	}
	if o := next(); o.err != nil || o.res.Functions != 3 {
		t.Fatalf("rebuild = %+v, %v", o.res, o.err)
	}

	cancel()
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchSkipsUnchangedSaves(t *testing.T) {
	src, out := project(t)
	reportPath := filepath.Join(t.TempDir(), "jinix-report.json")
	if err := report.Save(reportPath, dummyReport("withParams")); err != nil {
		t.Fatal(err)
	}
	n := newNativizer(t, Options{SourceDir: src, OutDir: out})

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		res *Result
		err error
	}
	builds := make(chan outcome, 4)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		n.Watch(ctx, reportPath, 50*time.Millisecond, func(res *Result, err error) {
			builds <- outcome{res, err}
		})
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	select {
	case o := <-builds:
		if o.err != nil {
			t.Fatalf("initial build: %v", o.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no initial build")
	}

	path := filepath.Join(src, "demo", "Dummy.java")
	if err := os.WriteFile(path, []byte(dummySource), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-builds:
		t.Fatal("rebuilt after saving identical content")
	case <-time.After(500 * time.Millisecond):
	}

	edited := strings.Replace(dummySource, "x + y * z", "x * y + z", 1)
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case o := <-builds:
		if o.err != nil || o.res.Functions != 2 {
			t.Errorf("rebuild = %+v, %v", o.res, o.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after an edit")
	}
}
