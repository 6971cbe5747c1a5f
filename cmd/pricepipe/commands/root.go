package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pricepipe/internal/config"
	"pricepipe/internal/infrastructure"
)

const shutdownTimeout = 5 * time.Second

// annotationDatabase marks commands that open a database connection. Their
// connection and bastion settings are validated before the command runs.
const annotationDatabase = "pricepipe/database"

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	var envFile string
	a := &app{}

	root := &cobra.Command{
		Use:           "pricepipe",
		Short:         "pricepipe exports the nongnet wholesale price sheet and appends it to the price table.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd, envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load before reading the environment (default .env when present)")

	root.AddCommand(
		newRunCmd(a),
		newCrawlCmd(a),
		newTransformCmd(a),
		newLoadCmd(a),
	)
	return root
}

// ExecuteContext runs the CLI and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// app carries what every subcommand shares once the root pre-run is done.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	providers *infrastructure.OTelProviders
	closeLog  func() error
}

func (a *app) init(cmd *cobra.Command, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if cmd.Annotations[annotationDatabase] == "true" {
		if err := cfg.ValidateDatabase(); err != nil {
			return err
		}
	}

	logger, closeLog, err := infrastructure.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	providers, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{
		ServiceName:    infrastructure.ServiceName,
		ServiceVersion: infrastructure.ServiceVersion,
		Environment:    cfg.Env,
		TraceExporter:  cfg.OTel.TraceExporter,
		MetricExporter: cfg.OTel.MetricExporter,
		SampleRatio:    1.0,
	}, logger)
	if err != nil {
		_ = closeLog()
		return err
	}

	a.cfg, a.logger, a.providers, a.closeLog = cfg, logger, providers, closeLog
	logger.DebugContext(cmd.Context(), "Configuration loaded",
		slog.String("env", cfg.Env),
		slog.String("db_driver", cfg.Database.Driver),
		slog.Bool("tunnel", cfg.NeedsTunnel()),
		slog.String("download_dir", cfg.Crawl.DownloadDir))
	return nil
}

// runE wraps a subcommand so the telemetry and log file are released on
// every exit path. Cobra skips post-run hooks when RunE fails.
func (a *app) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := a.close(cmd.Context()); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (a *app) close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var err error
	if a.providers != nil {
		err = a.providers.Shutdown(ctx)
	}
	if a.closeLog != nil {
		if cerr := a.closeLog(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
