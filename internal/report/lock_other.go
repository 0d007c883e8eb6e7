//go:build !unix

package report

// lockFile is a no-op where flock is unavailable.
func lockFile(string, bool) (func() error, error) {
	return func() error { return nil }, nil
}
