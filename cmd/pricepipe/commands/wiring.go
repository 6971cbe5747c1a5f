package commands

import (
	"context"
	"io"
	"log/slog"

	"pricepipe/internal/browser"
	"pricepipe/internal/config"
	"pricepipe/internal/crawler"
	"pricepipe/internal/database"
	"pricepipe/internal/dataprocessing"
	"pricepipe/internal/files"
	"pricepipe/internal/operations"
	"pricepipe/internal/wait"
)

const previewRows = 5

func launchOptions(cfg *config.Config) browser.LaunchOptions {
	opts := browser.LocalOptions(cfg.Crawl.DownloadDir)
	if cfg.IsProduction() {
		opts = browser.ProductionOptions(cfg.Crawl.DownloadDir)
	}
	opts.PageLoadTimeout = cfg.Crawl.PageLoadTimeout
	return opts
}

func crawlerConfig(cfg *config.Config) (crawler.Config, error) {
	query := crawler.DefaultQuerySpec()
	if cfg.Crawl.QueryFile != "" {
		var err error
		if query, err = crawler.LoadQuerySpec(cfg.Crawl.QueryFile); err != nil {
			return crawler.Config{}, err
		}
	}

	delays := crawler.DefaultDelays()
	delays.DataLoad = cfg.Crawl.DataLoadDelay
	delays.Close = cfg.Crawl.CloseDelay

	return crawler.Config{
		URL:         cfg.Crawl.URL,
		DownloadDir: cfg.Crawl.DownloadDir,
		Elements:    wait.NewPolicy(cfg.Crawl.ElementTimeout, cfg.Crawl.PollInterval),
		PageLoad:    wait.NewPolicy(cfg.Crawl.PageLoadTimeout, cfg.Crawl.PollInterval),
		Download:    wait.NewPolicy(cfg.Crawl.DownloadTimeout, cfg.Crawl.DownloadPollInterval),
		Delays:      delays,
		Query:       query,
	}, nil
}

func databaseOptions(cfg *config.Config) (database.Options, database.SSHOptions) {
	db := database.Options{
		Driver:      cfg.Database.Driver,
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Name:        cfg.Database.Name,
		PingTimeout: cfg.Database.PingTimeout,
	}
	tunnel := database.SSHOptions{
		Host:           cfg.SSH.Host,
		Port:           cfg.SSH.Port,
		User:           cfg.SSH.User,
		KeyPath:        cfg.SSH.KeyPath,
		Passphrase:     cfg.SSH.KeyPassphrase,
		KnownHostsPath: cfg.SSH.KnownHosts,
		DialTimeout:    cfg.SSH.DialTimeout,
	}
	return db, tunnel
}

// connectionProvider only tunnels to MySQL. A SQLite file is always local.
func connectionProvider(cfg *config.Config, logger *slog.Logger) database.ConnectionProvider {
	db, tunnel := databaseOptions(cfg)
	if !cfg.NeedsTunnel() && !cfg.IsProduction() {
		return database.NewDirectProvider(db, logger)
	}
	return database.NewProvider(cfg.Env, db, tunnel, logger)
}

func (a *app) newCrawler() (*crawler.Crawler, error) {
	ccfg, err := crawlerConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	launcher := browser.NewChromeLauncher(launchOptions(a.cfg), a.logger)
	return crawler.New(launcher, ccfg, a.logger), nil
}

// newPipeline wires every stage. A nil crawler is fine for runs that start
// from a file.
func (a *app) newPipeline(c operations.Crawler, preview io.Writer) (*operations.Pipeline, error) {
	tracer, err := operations.NewPipelineTracer(a.providers)
	if err != nil {
		return nil, err
	}
	loader := database.NewLoader(connectionProvider(a.cfg, a.logger), a.cfg.Load.BatchSize, a.logger)
	return operations.New(
		c,
		files.NewDiscovery(""),
		dataprocessing.NewReader(a.logger),
		dataprocessing.NewTransformer(a.logger),
		loader,
		operations.Config{DownloadDir: a.cfg.Crawl.DownloadDir, TableName: a.cfg.Load.Table},
		a.logger,
		operations.WithTracer(tracer),
		operations.WithPreview(preview, previewRows),
	), nil
}

// withRunLock prepares the download directory and holds the run lock
// around fn.
func (a *app) withRunLock(ctx context.Context, fn func() error) error {
	if err := config.EnsureDir(a.cfg.Crawl.DownloadDir); err != nil {
		return err
	}
	lock, err := files.AcquireRunLock(a.cfg.Crawl.DownloadDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			a.logger.WarnContext(ctx, "Failed to release run lock", slog.String("error", err.Error()))
		}
	}()
	return fn()
}
