//go:build unix

package report

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

// lockFile takes an advisory flock on "<path>.lock" and returns its release.
func lockFile(path string, exclusive bool) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, jerrors.External(path, err)
	}
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, jerrors.External(path+".lock", err)
	}
	how := unix.LOCK_SH
	if exclusive {
		how = unix.LOCK_EX
	}
	for {
		err = unix.Flock(int(f.Fd()), how)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		f.Close()
		return nil, jerrors.External(path+".lock", err)
	}
	return func() error {
		defer f.Close()
		return unix.Flock(int(f.Fd()), unix.LOCK_UN)
	}, nil
}
