// Package vfs watches source trees for changes that require a rebuild.
package vfs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

// WatchOp indicates a change operation in the filesystem.
type WatchOp uint32

const (
	OpCreate WatchOp = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// Event describes a filesystem change event.
type Event struct {
	Path string
	Op   WatchOp
	Time time.Time
}

// Filter reports whether a changed file is relevant.
type Filter func(path string) bool

// Extensions returns a filter accepting files with one of exts, plus the
// listed extra paths.
func Extensions(exts []string, extra ...string) Filter {
	want := make(map[string]bool, len(extra))
	for _, p := range extra {
		if abs, err := filepath.Abs(p); err == nil {
			want[abs] = true
		}
	}
	return func(path string) bool {
		for _, e := range exts {
			if strings.HasSuffix(path, e) {
				return true
			}
		}
		abs, err := filepath.Abs(path)
		return err == nil && want[abs]
	}
}

// Watcher delivers filtered fsnotify events for a set of directory trees.
// Directories created under a watched tree are watched as they appear.
type Watcher struct {
	w      *fsnotify.Watcher
	filter Filter
	evC    chan Event
	erC    chan error
	done   chan struct{}
	once   sync.Once
}

// NewWatcher creates a watcher. A nil filter accepts every file.
func NewWatcher(filter Filter) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, jerrors.External("fsnotify", err)
	}
	fw := &Watcher{
		w:      w,
		filter: filter,
		evC:    make(chan Event, 128),
		erC:    make(chan error, 1),
		done:   make(chan struct{}),
	}
	go fw.loop()
	return fw, nil
}

// AddTree watches root and every non-hidden directory below it.
func (fw *Watcher) AddTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.w.Add(path); err != nil {
			return jerrors.External("watch "+path, err)
		}
		return nil
	})
}

// Add watches a single file or directory.
func (fw *Watcher) Add(name string) error {
	if err := fw.w.Add(name); err != nil {
		return jerrors.External("watch "+name, err)
	}
	return nil
}

func (fw *Watcher) loop() {
	defer close(fw.evC)
	for {
		select {
		case <-fw.done:
			return
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !strings.HasPrefix(info.Name(), ".") {
					_ = fw.AddTree(ev.Name)
					continue
				}
			}
			if fw.filter != nil && !fw.filter(ev.Name) {
				continue
			}
			select {
			case fw.evC <- Event{Path: ev.Name, Op: convertOp(ev.Op), Time: time.Now()}:
			case <-fw.done:
				return
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			select {
			case fw.erC <- err:
			default:
			}
		}
	}
}

func convertOp(o fsnotify.Op) WatchOp {
	var op WatchOp
	if o&fsnotify.Create != 0 {
		op |= OpCreate
	}
	if o&fsnotify.Write != 0 {
		op |= OpWrite
	}
	if o&fsnotify.Remove != 0 {
		op |= OpRemove
	}
	if o&fsnotify.Rename != 0 {
		op |= OpRename
	}
	if o&fsnotify.Chmod != 0 {
		op |= OpChmod
	}
	return op
}

// Events is closed once the watcher is closed.
func (fw *Watcher) Events() <-chan Event { return fw.evC }
func (fw *Watcher) Errors() <-chan error { return fw.erC }

func (fw *Watcher) Close() error {
	var err error
	fw.once.Do(func() {
		close(fw.done)
		err = fw.w.Close()
	})
	return err
}

// Debounce groups events into batches separated by at least quiet of
// inactivity. Each batch holds the distinct changed paths, sorted. The
// returned channel closes when ctx ends or events closes.
func Debounce(ctx context.Context, events <-chan Event, quiet time.Duration) <-chan []string {
	out := make(chan []string)
	go func() {
		defer close(out)
		pending := map[string]bool{}
		timer := time.NewTimer(quiet)
		if !timer.Stop() {
			<-timer.C
		}
		flush := func() bool {
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			pending = map[string]bool{}
			select {
			case out <- batch:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					if len(pending) > 0 {
						flush()
					}
					return
				}
				pending[ev.Path] = true
				timer.Reset(quiet)
			case <-timer.C:
				if len(pending) > 0 && !flush() {
					return
				}
			}
		}
	}()
	return out
}
