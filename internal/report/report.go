// Package report persists the set of methods selected for nativization
// between the scan and build phases.
//
// A report maps each class to its source file and the names of the methods
// to nativize. Files carry a semantic format version; readers accept every
// version of the same major line.
package report

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	semver "github.com/Masterminds/semver/v3"

	jerrors "github.com/jinix-lang/jinix/internal/errors"
	"github.com/jinix-lang/jinix/internal/javasrc"
)

// FormatVersion is the version written by this package.
const FormatVersion = "1.0.0"

// supportedFormats is the range of format versions Parse accepts.
const supportedFormats = "^1.0.0"

// ClassEntry lists the methods of one class.
type ClassEntry struct {
	Source   string   `json:"source"`
	Nativize []string `json:"nativize"`
}

// Report is the persisted method selection.
type Report struct {
	FormatVersion string                `json:"format_version"`
	Classes       map[string]ClassEntry `json:"classes"`
}

// New returns an empty report of the current format.
func New() *Report {
	return &Report{FormatVersion: FormatVersion, Classes: make(map[string]ClassEntry)}
}

// FromIndex builds a report from the @Nativize methods of an index.
func FromIndex(ix *javasrc.Index) *Report {
	r := New()
	for _, m := range ix.Nativized() {
		r.Add(m.Class.Name, m.Class.SourceFile(), m.Name)
	}
	return r
}

// Add records method of class. Adding a method twice is a no-op.
func (r *Report) Add(class, source, method string) {
	e := r.Classes[class]
	if source != "" {
		e.Source = source
	}
	for _, m := range e.Nativize {
		if m == method {
			r.Classes[class] = e
			return
		}
	}
	e.Nativize = append(e.Nativize, method)
	sort.Strings(e.Nativize)
	r.Classes[class] = e
}

// ClassNames returns the recorded classes in sorted order.
func (r *Report) ClassNames() []string {
	names := make([]string, 0, len(r.Classes))
	for n := range r.Classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Selects reports whether the method is recorded for class.
func (r *Report) Selects(class, method string) bool {
	for _, m := range r.Classes[class].Nativize {
		if m == method {
			return true
		}
	}
	return false
}

// Len returns the number of recorded methods.
func (r *Report) Len() int {
	n := 0
	for _, e := range r.Classes {
		n += len(e.Nativize)
	}
	return n
}

// Parse decodes a report and checks its format version.
func Parse(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, jerrors.Invalid("malformed report: %v", err)
	}
	v, err := semver.NewVersion(r.FormatVersion)
	if err != nil {
		return nil, jerrors.Invalid("report format version %q: %v", r.FormatVersion, err)
	}
	c, err := semver.NewConstraint(supportedFormats)
	if err != nil {
		return nil, jerrors.Invariant("format constraint %q: %v", supportedFormats, err)
	}
	if !c.Check(v) {
		return nil, jerrors.Invalid("report format version %s is not supported (want %s)", v, supportedFormats)
	}
	if r.Classes == nil {
		r.Classes = make(map[string]ClassEntry)
	}
	return &r, nil
}

// Marshal encodes the report deterministically.
func (r *Report) Marshal() ([]byte, error) {
	for name, e := range r.Classes {
		sort.Strings(e.Nativize)
		r.Classes[name] = e
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Load reads the report at path under a shared lock.
func Load(path string) (*Report, error) {
	unlock, err := lockFile(path, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return read(path)
}

// Save writes the report at path under an exclusive lock.
func Save(path string, r *Report) error {
	unlock, err := lockFile(path, true)
	if err != nil {
		return err
	}
	defer unlock()
	return write(path, r)
}

// Update applies fn to the report at path, creating it when missing, and
// saves the result. The exclusive lock is held for the whole
// read-modify-write.
func Update(path string, fn func(*Report) error) error {
	unlock, err := lockFile(path, true)
	if err != nil {
		return err
	}
	defer unlock()
	r, err := read(path)
	if errors.Is(err, fs.ErrNotExist) {
		r, err = New(), nil
	}
	if err != nil {
		return err
	}
	if err := fn(r); err != nil {
		return err
	}
	return write(path, r)
}

func read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, jerrors.External(path, err)
	}
	return Parse(data)
}

func write(path string, r *Report) error {
	data, err := r.Marshal()
	if err != nil {
		return jerrors.External(path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return jerrors.External(path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return jerrors.External(path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return jerrors.External(path, err)
	}
	return nil
}
