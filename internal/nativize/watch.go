package nativize

import (
	"context"
	"path/filepath"
	"time"

	"github.com/jinix-lang/jinix/internal/build"
	"github.com/jinix-lang/jinix/internal/report"
	"github.com/jinix-lang/jinix/internal/vfs"
)

// DefaultQuiet is the debounce interval of Watch.
const DefaultQuiet = 300 * time.Millisecond

// Watch builds once, then rebuilds whenever a Java source below the source
// directory or the report file changes. Saving a source without changing
// its content does not rebuild. Each outcome is passed to done. Watch
// returns nil when ctx ends.
func (n *Nativizer) Watch(ctx context.Context, reportPath string, quiet time.Duration, done func(*Result, error)) error {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	w, err := vfs.NewWatcher(vfs.Extensions([]string{".java"}, reportPath))
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.AddTree(n.opts.SourceDir); err != nil {
		return err
	}
	// the report is replaced by rename, so watch its directory
	if err := w.Add(filepath.Dir(reportPath)); err != nil {
		return err
	}

	reportAbs, err := filepath.Abs(reportPath)
	if err != nil {
		return err
	}
	prev, err := build.SnapshotTree(n.opts.SourceDir, ".java")
	if err != nil {
		return err
	}

	rebuild := func() {
		rep, err := report.Load(reportPath)
		if err != nil {
			done(nil, err)
			return
		}
		done(n.Run(ctx, rep))
	}
	rebuild()

	batches := vfs.Debounce(ctx, w.Events(), quiet)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			n.log.Warn("watch: %v", err)
		case changed, ok := <-batches:
			if !ok {
				return nil
			}
			sources, err := n.changedSources(&prev)
			if err != nil {
				n.log.Warn("watch: %v", err)
			} else if len(sources) == 0 && !contains(changed, reportAbs) {
				n.log.Debug("no content change in %d files", len(changed))
				continue
			}
			for _, p := range sources {
				n.log.Debug("changed %s", p)
			}
			n.log.WithFields(map[string]interface{}{"files": len(changed), "sources": len(sources)}).Info("change detected")
			rebuild()
		}
	}
}

// changedSources fingerprints the source tree again and returns the files
// that differ from *prev, which is updated.
func (n *Nativizer) changedSources(prev *build.Snapshot) ([]string, error) {
	curr, err := build.SnapshotTree(n.opts.SourceDir, ".java")
	if err != nil {
		return nil, err
	}
	changed := build.Diff(*prev, curr)
	*prev = curr
	return changed, nil
}

func contains(paths []string, want string) bool {
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil && abs == want {
			return true
		}
	}
	return false
}
