package build

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// CacheKey identifies a set of generated files.
type CacheKey string

// KeyOf derives a cache key from the build inputs, in order.
func KeyOf(parts ...string) CacheKey {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
	return CacheKey(hex.EncodeToString(h.Sum(nil)))
}

// Artifact is a set of generated files keyed by file name.
type Artifact struct {
	Files    map[string][]byte
	Metadata map[string]string
}

// CacheStats counts cache traffic.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int64
	Bytes   int64
}

// Cache stores artifacts by key.
type Cache interface {
	Get(key CacheKey) (Artifact, bool, error)
	Put(key CacheKey, a Artifact) error
	Invalidate(key CacheKey) error
	Stats() CacheStats
}

// FSCache keeps gzip-compressed artifacts below a root directory, one
// directory per key with a JSON manifest.
type FSCache struct {
	root  string
	mu    sync.Mutex
	stats CacheStats
}

// NewFSCache creates the root directory if needed.
func NewFSCache(root string) (*FSCache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FSCache{root: root}, nil
}

type fsManifest struct {
	Key       string            `json:"key"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Files     []fsFileEntry     `json:"files"`
}

type fsFileEntry struct {
	Name   string `json:"name"`
	Blob   string `json:"blob"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

func (fc *FSCache) dir(key CacheKey) string      { return filepath.Join(fc.root, string(key)) }
func (fc *FSCache) manifest(key CacheKey) string { return filepath.Join(fc.dir(key), "manifest.json") }

// Get returns the artifact for key. Corrupted entries are reported as
// errors, never served.
func (fc *FSCache) Get(key CacheKey) (Artifact, bool, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	b, err := os.ReadFile(fc.manifest(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fc.stats.Misses++
			return Artifact{}, false, nil
		}
		return Artifact{}, false, err
	}
	var man fsManifest
	if err := json.Unmarshal(b, &man); err != nil {
		return Artifact{}, false, err
	}
	art := Artifact{Files: make(map[string][]byte, len(man.Files)), Metadata: man.Metadata}
	for _, fe := range man.Files {
		raw, err := os.ReadFile(filepath.Join(fc.dir(key), fe.Blob))
		if err != nil {
			return Artifact{}, false, err
		}
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return Artifact{}, false, err
		}
		data, err := io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return Artifact{}, false, err
		}
		sum := sha256.Sum256(data)
		if int64(len(data)) != fe.Size || hex.EncodeToString(sum[:]) != fe.SHA256 {
			return Artifact{}, false, fmt.Errorf("cache entry %s: %s is corrupted", key, fe.Name)
		}
		art.Files[fe.Name] = data
	}
	fc.stats.Hits++
	return art, true, nil
}

// Put stores a under key, replacing any previous entry. The manifest is
// written last so readers never see a partial entry.
func (fc *FSCache) Put(key CacheKey, a Artifact) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	dir := fc.dir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	names := make([]string, 0, len(a.Files))
	for name := range a.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	man := fsManifest{Key: string(key), CreatedAt: time.Now().UTC(), Metadata: a.Metadata}
	var total int64
	for _, name := range names {
		data := a.Files[name]
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(data); err != nil {
			return err
		}
		if err := gw.Close(); err != nil {
			return err
		}
		blob := filepath.Base(name) + ".gz"
		if err := os.WriteFile(filepath.Join(dir, blob), buf.Bytes(), 0o644); err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		man.Files = append(man.Files, fsFileEntry{Name: name, Blob: blob, Size: int64(len(data)), SHA256: hex.EncodeToString(sum[:])})
		total += int64(len(data))
	}
	mb, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return err
	}
	tmp := fc.manifest(key) + ".tmp"
	if err := os.WriteFile(tmp, mb, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, fc.manifest(key)); err != nil {
		return err
	}
	fc.stats.Entries++
	fc.stats.Bytes += total
	return nil
}

// Invalidate removes the entry for key if present.
func (fc *FSCache) Invalidate(key CacheKey) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if _, err := os.Stat(fc.dir(key)); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.RemoveAll(fc.dir(key)); err != nil {
		return err
	}
	fc.stats.Entries--
	return nil
}

// Stats returns the traffic counters.
func (fc *FSCache) Stats() CacheStats {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.stats
}
