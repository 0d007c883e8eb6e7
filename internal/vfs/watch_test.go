package vfs

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestExtensionsFilter(t *testing.T) {
	f := Extensions([]string{".java"}, "report.json")
	if !f("src/demo/Calc.java") {
		t.Error("java source rejected")
	}
	if f("src/demo/Calc.class") {
		t.Error("class file accepted")
	}
	if !f("./report.json") {
		t.Error("report rejected")
	}
}

func TestDebounceBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := make(chan Event)
	out := Debounce(ctx, in, 20*time.Millisecond)

	in <- Event{Path: "b.java"}
	in <- Event{Path: "a.java"}
	in <- Event{Path: "b.java"}
	select {
	case got := <-out:
		if want := []string{"a.java", "b.java"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("batch = %v, want %v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no batch")
	}

	in <- Event{Path: "c.java"}
	close(in)
	got, ok := <-out
	if !ok || !reflect.DeepEqual(got, []string{"c.java"}) {
		t.Fatalf("final batch = %v, %v", got, ok)
	}
	if _, ok := <-out; ok {
		t.Fatal("output not closed")
	}
}

func TestWatcherFiltersAndFollowsNewDirs(t *testing.T) {
	fw, err := NewWatcher(Extensions([]string{".java"}))
	if err != nil {
		t.Skip("fsnotify not supported: ", err)
	}
	defer fw.Close()
	dir := t.TempDir()
	if err := fw.AddTree(dir); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "demo")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// the new directory is registered asynchronously
	time.Sleep(100 * time.Millisecond)
	target := filepath.Join(sub, "Calc.java")
	if err := os.WriteFile(target, []byte("class Calc {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-fw.Events():
			if filepath.Ext(ev.Path) != ".java" {
				t.Fatalf("unfiltered event %v", ev)
			}
			if ev.Path == target {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for event")
		}
	}
}
