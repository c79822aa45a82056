package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"insightmcp/pkg/logging"
)

const metricsShutdownTimeout = 5 * time.Second

// runServe serves MCP over stdio. When a metrics address is configured a
// Prometheus listener runs alongside it. SIGINT and SIGTERM stop both.
func runServe(ctx context.Context, cfg *Config, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := cfg.MetricsAddr
	if addr == "" {
		addr = cfg.Settings.Metrics.Addr
	}
	if addr != "" {
		_, shutdown, err := startMetricsServer(addr, services)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	logging.Info("Serve", "Serving MCP over stdio with %d tools", len(services.Server.ToolNames()))
	err := services.Server.ServeStdio(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("Serve", err, "MCP server stopped")
		return err
	}
	logging.Info("Serve", "MCP server stopped")
	return nil
}

// startMetricsServer listens on addr and returns the bound address and a
// shutdown function.
func startMetricsServer(addr string, services *Services) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", services.Metrics.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics", err, "Metrics listener failed")
		}
	}()
	logging.Info("Metrics", "Serving metrics on http://%s/metrics", ln.Addr())

	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics", "Metrics listener shutdown: %v", err)
		}
	}, nil
}
