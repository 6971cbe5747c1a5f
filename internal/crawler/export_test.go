package crawler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepipe/internal/browser"
	"pricepipe/internal/browser/browsertest"
	apperrors "pricepipe/internal/errors"
	"pricepipe/internal/wait"
)

func touch(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
}

func newWatcher(clock *wait.FakeClock) *ExportWatcher {
	elements, download := testPolicies(clock)
	return NewExportWatcher(newSheet(), elements, download, nil)
}

func TestTakeSnapshot(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.xlsx")
	touch(t, dir, "b.xlsx.crdownload")

	snap, err := TakeSnapshot(dir)
	require.NoError(t, err)
	assert.True(t, snap.Has("a.xlsx"))
	assert.True(t, snap.Has("b.xlsx.crdownload"))
	assert.False(t, snap.Has("c.xlsx"))

	missing, err := TakeSnapshot(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestAwaitCompletion(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		// arrivals maps a sleep count to files that appear after it.
		arrivals map[int][]string
		renames  map[int][2]string
		want     string
		wantErr  apperrors.ErrorType
	}{
		{
			name:     "single new file",
			existing: []string{"old.xlsx"},
			arrivals: map[int][]string{3: {"prices_2024-06-10.xlsx"}},
			want:     "prices_2024-06-10.xlsx",
		},
		{
			name:     "partial then renamed",
			arrivals: map[int][]string{1: {"prices.xlsx.crdownload"}},
			renames:  map[int][2]string{4: {"prices.xlsx.crdownload", "prices.xlsx"}},
			want:     "prices.xlsx",
		},
		{
			name:     "two new files picks first by name",
			arrivals: map[int][]string{2: {"b.xlsx", "a.xlsx"}},
			want:     "a.xlsx",
		},
		{
			name:     "pre-existing files are ignored",
			existing: []string{"a.xlsx", "b.xlsx"},
			wantErr:  apperrors.ErrTypeDownloadTimeout,
		},
		{
			name:     "only partial appears",
			arrivals: map[int][]string{1: {"prices.xlsx.crdownload"}},
			wantErr:  apperrors.ErrTypeDownloadTimeout,
		},
		{
			name:     "hidden temp files are ignored",
			arrivals: map[int][]string{1: {".com.google.Chrome.abc123"}},
			wantErr:  apperrors.ErrTypeDownloadTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, name := range tt.existing {
				touch(t, dir, name)
			}
			before, err := TakeSnapshot(dir)
			require.NoError(t, err)

			clock := wait.NewFakeClock(today)
			clock.OnSleep = func(n int) {
				for _, name := range tt.arrivals[n] {
					touch(t, dir, name)
				}
				if r, ok := tt.renames[n]; ok {
					require.NoError(t, os.Rename(filepath.Join(dir, r[0]), filepath.Join(dir, r[1])))
				}
			}

			got, err := newWatcher(clock).AwaitCompletion(context.Background(), dir, before)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, tt.wantErr))
				assert.ErrorIs(t, err, wait.ErrTimeout)
				assert.Equal(t, 60*time.Second, clock.Slept())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
			assert.Equal(t, filepath.Join(dir, tt.want), got.Path)
		})
	}
}

func TestAwaitCompletion_FileAlreadyThere(t *testing.T) {
	dir := t.TempDir()
	clock := wait.NewFakeClock(today)
	touch(t, dir, "prices.xlsx")

	got, err := newWatcher(clock).AwaitCompletion(context.Background(), dir, Snapshot{})

	require.NoError(t, err)
	assert.Equal(t, "prices.xlsx", got.Name)
	assert.Equal(t, 0, clock.Sleeps())
}

func TestRemoveStalePartials(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "keep.xlsx")
	touch(t, dir, "stale.xlsx.crdownload")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.crdownload"), 0o755))

	removed, err := RemoveStalePartials(dir)

	require.NoError(t, err)
	assert.Equal(t, []string{"stale.xlsx.crdownload"}, removed)
	assert.FileExists(t, filepath.Join(dir, "keep.xlsx"))
	assert.NoFileExists(t, filepath.Join(dir, "stale.xlsx.crdownload"))
	assert.DirExists(t, filepath.Join(dir, "sub.crdownload"))

	removed, err = RemoveStalePartials(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestTrigger(t *testing.T) {
	t.Run("script clicks export button", func(t *testing.T) {
		session := newSheet()
		elements, download := testPolicies(wait.NewFakeClock(today))

		require.NoError(t, NewExportWatcher(session, elements, download, nil).Trigger(context.Background()))
		ops := session.Ops()
		require.NotEmpty(t, ops)
		assert.Equal(t, call("script", selExportButton, browser.ScriptClick), ops[len(ops)-1])
		assert.Equal(t, 1, countOps(ops, call("script", selExportButton, browser.ScriptClick)))
	})

	t.Run("button disabled", func(t *testing.T) {
		session := newSheet()
		session.Add(selExportButton, &browsertest.Node{NeverClickable: true})
		elements, download := testPolicies(wait.NewFakeClock(today))

		err := NewExportWatcher(session, elements, download, nil).Trigger(context.Background())
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeElementNotFound))
		assert.NotContains(t, session.Ops(), call("script", selExportButton, browser.ScriptClick))
	})

	t.Run("button missing", func(t *testing.T) {
		session := newSheet()
		session.Add(selExportButton, &browsertest.Node{Missing: true})
		elements, download := testPolicies(wait.NewFakeClock(today))

		err := NewExportWatcher(session, elements, download, nil).Trigger(context.Background())
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeElementNotFound))
	})
}
