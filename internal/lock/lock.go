package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

type Guard struct {
	file *flock.Flock
}

// Acquire obtains the per-attachment lock so backup creation and restore
// execution for the same attachment never overlap.
func Acquire(dir string, attachmentID int64) (*Guard, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("attachment-%d.lock", attachmentID))
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("another operation is already running for attachment %d (lock: %s)", attachmentID, path)
	}
	return &Guard{file: lock}, nil
}

// Release frees the lock.
func (g *Guard) Release() error {
	if g == nil || g.file == nil {
		return nil
	}
	return g.file.Unlock()
}
