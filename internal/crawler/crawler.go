package crawler

import (
	"context"
	"log/slog"
	"time"

	"pricepipe/internal/browser"
	apperrors "pricepipe/internal/errors"
	"pricepipe/internal/wait"
)

// Config holds everything a crawl needs besides the browser.
type Config struct {
	URL         string
	DownloadDir string

	// Elements bounds every wait for a control to appear or become clickable.
	Elements wait.Policy
	// PageLoad bounds the wait for the filter panel after navigation.
	PageLoad wait.Policy
	// Download bounds the wait for the export file.
	Download wait.Policy

	Delays Delays
	Query  QuerySpec
}

// Result describes a successful crawl.
type Result struct {
	Artifact     Artifact
	Range        DateRange
	DownloadWait time.Duration
}

// Crawler runs one extraction against the sheet: open the page, apply the
// query, export, and wait for the file.
type Crawler struct {
	launcher browser.Launcher
	cfg      Config
	logger   *slog.Logger
}

func New(launcher browser.Launcher, cfg Config, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{launcher: launcher, cfg: cfg, logger: logger.With(slog.String("component", "crawler"))}
}

func (c *Crawler) clock() wait.Clock {
	if c.cfg.Elements.Clock == nil {
		return wait.RealClock()
	}
	return c.cfg.Elements.Clock
}

// Run performs the crawl. The browser session is closed on every path.
func (c *Crawler) Run(ctx context.Context) (Result, error) {
	if err := c.cfg.Query.Validate(); err != nil {
		return Result{}, err
	}

	session, err := c.launcher.Launch(ctx)
	if err != nil {
		return Result{}, apperrors.NewBrowserError("launch browser", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			c.logger.WarnContext(ctx, "Failed to close browser", slog.String("error", err.Error()))
		}
	}()

	removed, err := RemoveStalePartials(c.cfg.DownloadDir)
	if err != nil {
		return Result{}, err
	}
	if len(removed) > 0 {
		c.logger.WarnContext(ctx, "Removed stale partial downloads", slog.Any("files", removed))
	}

	c.logger.InfoContext(ctx, "Opening sheet", slog.String("url", c.cfg.URL))
	if err := session.Navigate(ctx, c.cfg.URL); err != nil {
		return Result{}, apperrors.NewBrowserError("open sheet", err).WithContext("url", c.cfg.URL)
	}
	ready := newPage(session, c.cfg.PageLoad, c.cfg.Delays, c.logger)
	if _, err := ready.present(ctx, selPageReady); err != nil {
		return Result{}, apperrors.NewElementNotFoundError("filter panel", err).WithContext("selector", selPageReady)
	}

	dates := NewDateRange(c.clock().Now())
	query := NewQueryExecutor(session, c.cfg.Elements, c.cfg.Delays, c.logger)
	if err := query.Execute(ctx, dates, c.cfg.Query); err != nil {
		return Result{}, err
	}

	watcher := NewExportWatcher(session, c.cfg.Elements, c.cfg.Download, c.logger)
	before, err := TakeSnapshot(c.cfg.DownloadDir)
	if err != nil {
		return Result{}, err
	}
	if err := watcher.Trigger(ctx); err != nil {
		return Result{}, err
	}
	began := c.clock().Now()
	artifact, err := watcher.AwaitCompletion(ctx, c.cfg.DownloadDir, before)
	if err != nil {
		return Result{}, err
	}
	waited := c.clock().Now().Sub(began)

	// Chrome may still be flushing the file after the rename.
	wait.Settle(c.clock(), c.cfg.Delays.Close)

	c.logger.InfoContext(ctx, "Crawl complete",
		slog.String("artifact", artifact.Path),
		slog.String("range", dates.String()))
	return Result{Artifact: artifact, Range: dates, DownloadWait: waited}, nil
}
