package crawler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pricepipe/internal/browser"
	apperrors "pricepipe/internal/errors"
	"pricepipe/internal/wait"
)

// PartialSuffix marks a download Chrome is still writing.
const PartialSuffix = ".crdownload"

// Artifact is a completed export file.
type Artifact struct {
	Name string
	Path string
}

// Snapshot is the set of names present in a directory at one instant.
type Snapshot map[string]struct{}

// Has reports whether name was present.
func (s Snapshot) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// ExportWatcher triggers the sheet's export and detects the resulting file.
// Chrome exposes no completion event for the download, so the directory is
// polled until a new name without PartialSuffix appears.
type ExportWatcher struct {
	page     *page
	download wait.Policy
}

// NewExportWatcher creates a watcher. elements bounds the wait for the export
// button, download bounds the wait for the file.
func NewExportWatcher(session browser.Session, elements, download wait.Policy, logger *slog.Logger) *ExportWatcher {
	return &ExportWatcher{
		page:     newPage(session, elements, Delays{}, logger),
		download: download,
	}
}

// TakeSnapshot lists dir. A missing directory yields an empty snapshot.
func TakeSnapshot(dir string) (Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("list download directory", err).WithContext("dir", dir)
	}
	snap := make(Snapshot, len(entries))
	for _, e := range entries {
		snap[e.Name()] = struct{}{}
	}
	return snap, nil
}

// RemoveStalePartials deletes partial downloads left by an earlier run, so a
// late rename of one of them cannot be taken for this run's export.
func RemoveStalePartials(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("list download directory", err).WithContext("dir", dir)
	}
	var removed []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), PartialSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, apperrors.NewStorageError("remove stale partial download", err).WithContext("file", e.Name())
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}

// Trigger clicks the export button from inside the page.
func (w *ExportWatcher) Trigger(ctx context.Context) error {
	if err := w.page.scriptClickWhenReady(ctx, selExportButton); err != nil {
		return apperrors.NewElementNotFoundError("export button", err).WithContext("selector", selExportButton)
	}
	w.page.logger.InfoContext(ctx, "Export triggered")
	return nil
}

// AwaitCompletion polls dir until a name absent from before appears without
// PartialSuffix. Hidden names are ignored. When several qualify in the same poll the lexically first
// wins.
func (w *ExportWatcher) AwaitCompletion(ctx context.Context, dir string, before Snapshot) (Artifact, error) {
	clock := w.download.Clock
	if clock == nil {
		clock = wait.RealClock()
	}
	began := clock.Now()

	artifact, err := wait.For(ctx, w.download, func(context.Context) (Artifact, bool, error) {
		name, ok, err := firstCompleted(dir, before)
		if err != nil || !ok {
			return Artifact{}, false, err
		}
		return Artifact{Name: name, Path: filepath.Join(dir, name)}, true, nil
	})
	if errors.Is(err, wait.ErrTimeout) {
		return Artifact{}, apperrors.NewDownloadTimeoutError(dir, err).
			WithContext("timeout", w.download.Timeout.String())
	}
	if err != nil {
		return Artifact{}, err
	}

	w.page.logger.InfoContext(ctx, "Download complete",
		slog.String("file", artifact.Name),
		slog.Duration("waited", clock.Now().Sub(began)))
	return artifact, nil
}

func firstCompleted(dir string, before Snapshot) (string, bool, error) {
	snap, err := TakeSnapshot(dir)
	if err != nil {
		return "", false, err
	}
	var fresh []string
	for name := range snap {
		// Chrome stages some downloads in hidden temp files before the rename.
		if before.Has(name) || strings.HasPrefix(name, ".") || strings.HasSuffix(name, PartialSuffix) {
			continue
		}
		fresh = append(fresh, name)
	}
	if len(fresh) == 0 {
		return "", false, nil
	}
	sort.Strings(fresh)
	return fresh[0], true, nil
}
