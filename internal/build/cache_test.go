package build

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeyOf(t *testing.T) {
	if KeyOf("ab", "c") == KeyOf("a", "bc") {
		t.Fatal("key ignores part boundaries")
	}
	if KeyOf("x") != KeyOf("x") {
		t.Fatal("key is not deterministic")
	}
}

func TestFSCachePutGetInvalidate(t *testing.T) {
	fc, err := NewFSCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	key := KeyOf("report", "sources", "inline")
	if _, ok, err := fc.Get(key); ok || err != nil {
		t.Fatalf("empty cache hit: %v, %v", ok, err)
	}

	art := Artifact{
		Files:    map[string][]byte{"jinix.h": []byte("#ifndef JINIX_H\n"), "jinix.cpp": []byte("#include \"jinix.h\"\n")},
		Metadata: map[string]string{"policy": "inline"},
	}
	if err := fc.Put(key, art); err != nil {
		t.Fatal(err)
	}
	got, ok, err := fc.Get(key)
	if err != nil || !ok {
		t.Fatalf("get = %v, %v", ok, err)
	}
	if string(got.Files["jinix.cpp"]) != "#include \"jinix.h\"\n" || got.Metadata["policy"] != "inline" {
		t.Fatalf("artifact = %+v", got)
	}
	if s := fc.Stats(); s.Hits != 1 || s.Misses != 1 || s.Entries != 1 {
		t.Errorf("stats = %+v", s)
	}

	if err := fc.Invalidate(key); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := fc.Get(key); ok {
		t.Fatal("expected removal")
	}
	if err := fc.Invalidate(key); err != nil {
		t.Fatalf("second invalidate: %v", err)
	}
}

func TestFSCacheDetectsCorruption(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	fc, err := NewFSCache(root)
	if err != nil {
		t.Fatal(err)
	}
	key := KeyOf("k")
	if err := fc.Put(key, Artifact{Files: map[string][]byte{"jinix.cpp": []byte("int x;")}}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, string(key), "jinix.cpp.gz"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := fc.Get(key); ok || err == nil {
		t.Fatalf("corrupted entry served: %v, %v", ok, err)
	}
}
