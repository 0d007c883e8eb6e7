package build

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileState is the content fingerprint of one input file.
type FileState struct {
	Path   string
	Size   int64
	SHA256 string
}

// Snapshot fingerprints the input files of a build, sorted by path.
type Snapshot struct {
	Files []FileState
}

// HashFile returns the hex SHA-256 of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SnapshotTree fingerprints every file below root whose extension is in
// exts (all files when exts is empty). Hidden directories are skipped.
func SnapshotTree(root string, exts ...string) (Snapshot, error) {
	var snap Snapshot
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if len(exts) > 0 && !hasExt(p, exts) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		sum, err := HashFile(p)
		if err != nil {
			return err
		}
		snap.Files = append(snap.Files, FileState{Path: p, Size: info.Size(), SHA256: sum})
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	sort.Slice(snap.Files, func(i, j int) bool { return snap.Files[i].Path < snap.Files[j].Path })
	return snap, nil
}

func hasExt(p string, exts []string) bool {
	ext := filepath.Ext(p)
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

// Digest folds the snapshot into one hash.
func (s Snapshot) Digest() string {
	h := sha256.New()
	for _, f := range s.Files {
		io.WriteString(h, f.Path)
		h.Write([]byte{0})
		io.WriteString(h, f.SHA256)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Diff returns the paths added, removed or modified between prev and curr,
// sorted.
func Diff(prev, curr Snapshot) []string {
	before := make(map[string]FileState, len(prev.Files))
	for _, f := range prev.Files {
		before[f.Path] = f
	}
	var changed []string
	for _, f := range curr.Files {
		old, ok := before[f.Path]
		if !ok || old.Size != f.Size || old.SHA256 != f.SHA256 {
			changed = append(changed, f.Path)
		}
		delete(before, f.Path)
	}
	for p := range before {
		changed = append(changed, p)
	}
	sort.Strings(changed)
	return changed
}
