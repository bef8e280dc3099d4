package catalog

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Lock is an advisory, file-based lock ensuring only one engine
// process writes the catalog database at a time, the same mechanism
// surge's cmd package uses for single-instance enforcement, repointed
// at the catalog file instead of the whole application.
type Lock struct {
	flock *flock.Flock
}

// AcquireLock attempts to take the catalog lock at path+".lock"
// without blocking. ok is false if another process already holds it.
func AcquireLock(catalogPath string) (l *Lock, ok bool, err error) {
	fl := flock.New(catalogPath + ".lock")
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("try catalog lock: %w", err)
	}
	if !locked {
		return nil, false, nil
	}
	return &Lock{flock: fl}, true, nil
}

// Release gives up the lock.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}
