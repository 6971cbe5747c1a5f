// Package operations runs the price pipeline as an explicit state machine.
//
// A run moves through crawling, locating, transforming and loading and ends
// in done or failed:
//
//	crawling -> locating -> transforming -> loading -> done
//	    \           \             \             \
//	     +-----------+-------------+-------------+--> failed
//
// The first failing stage ends the run; later stages never execute. The
// outcome is returned as a RunResult value carrying the final state, the
// failed stage, the error and per-stage step records.
//
// Example usage:
//
//	p := operations.New(crawler, discovery,
//		dataprocessing.NewReader(logger),
//		dataprocessing.NewTransformer(logger), loader,
//		operations.Config{DownloadDir: dir, TableName: table}, logger,
//		operations.WithTracer(tracer))
//	result := p.Run(ctx)
//	os.Exit(result.ExitCode())
package operations
