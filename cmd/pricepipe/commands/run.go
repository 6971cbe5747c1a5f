package commands

import (
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run [--metrics-addr <host:port>]",
		Short: "Crawls the sheet, transforms the newest export and appends it to the price table.",
		Args:  cobra.NoArgs,
		Annotations: map[string]string{
			annotationDatabase: "true",
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address while the run is in progress")

	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if metricsAddr != "" {
			srv, err := startMetricsServer(ctx, metricsAddr, a.providers.PrometheusHTTP, a.logger)
			if err != nil {
				return err
			}
			defer srv.Stop(ctx)
		}

		c, err := a.newCrawler()
		if err != nil {
			return err
		}
		pipeline, err := a.newPipeline(c, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		return a.withRunLock(ctx, func() error {
			result := pipeline.Run(ctx)
			writeSummary(cmd.OutOrStdout(), result)
			return runError(result)
		})
	})
	return cmd
}
