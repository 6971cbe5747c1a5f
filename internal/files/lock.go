package files

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	apperrors "pricepipe/internal/errors"
)

// LockFileName is created inside the download directory. The leading dot
// keeps it out of FindExcelFiles and the export snapshot.
const LockFileName = ".pricepipe.lock"

// RunLock is an advisory lock held for the duration of one run so that two
// processes never share a download directory.
type RunLock struct {
	fl *flock.Flock
}

// AcquireRunLock takes the lock for dir without blocking. It fails when
// another process already holds it.
func AcquireRunLock(dir string) (*RunLock, error) {
	path := filepath.Join(dir, LockFileName)
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, apperrors.NewStorageError("failed to lock download directory", err).WithContext("path", path)
	}
	if !locked {
		return nil, apperrors.NewStorageError(fmt.Sprintf("another run holds %s", path), nil).WithContext("path", path)
	}
	return &RunLock{fl: fl}, nil
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	return l.fl.Path()
}

func (l *RunLock) Release() error {
	return l.fl.Unlock()
}
