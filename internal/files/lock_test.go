package files

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pricepipe/internal/errors"
)

func TestAcquireRunLock(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireRunLock(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, LockFileName), first.Path())

	_, err = AcquireRunLock(dir)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))

	require.NoError(t, first.Release())

	again, err := AcquireRunLock(dir)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquireRunLock_MissingDirectory(t *testing.T) {
	_, err := AcquireRunLock(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}

func TestLockFileIsNotAnExport(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireRunLock(dir)
	require.NoError(t, err)
	defer lock.Release()

	createFile(t, dir, "export.xlsx", time.Now())

	found, err := NewDiscovery("").FindExcelFiles(dir)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "export.xlsx", found[0].Name)
}
