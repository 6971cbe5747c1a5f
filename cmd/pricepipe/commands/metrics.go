package commands

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// newMetricsRouter exposes the Prometheus handler and a liveness probe.
// /metrics answers 404 when the metric exporter is disabled.
func newMetricsRouter(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	return r
}

type metricsServer struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// startMetricsServer listens on addr and serves in the background until
// Stop is called.
func startMetricsServer(ctx context.Context, addr string, metrics http.Handler, logger *slog.Logger) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &metricsServer{
		srv: &http.Server{
			Handler:           newMetricsRouter(metrics),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "Metrics server error", slog.String("error", err.Error()))
		}
	}()
	logger.InfoContext(ctx, "Metrics server listening", slog.String("addr", ln.Addr().String()))
	return s, nil
}

func (s *metricsServer) Addr() string {
	return s.ln.Addr().String()
}

func (s *metricsServer) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.WarnContext(ctx, "Metrics server shutdown error", slog.String("error", err.Error()))
	}
}
