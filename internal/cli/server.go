package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/minisoc-labs/minisoc/internal/config"
	"github.com/minisoc-labs/minisoc/internal/logging"
	"github.com/minisoc-labs/minisoc/internal/metrics"
	"github.com/minisoc-labs/minisoc/internal/server/alert"
	"github.com/minisoc-labs/minisoc/internal/server/api"
	"github.com/minisoc-labs/minisoc/internal/server/detect"
	"github.com/minisoc-labs/minisoc/internal/server/storage"
)

func newServerCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the MiniSOC ingest/detection/alerting HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "configs/server.example.yaml", "path to server config YAML")
	return cmd
}

func runServer(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New("minisoc-server", cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	store, err := storage.Open(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	dedupePath := filepath.Join(cfg.Server.JSONLDir, "alerts_dedupe.txt")
	dedupe, err := alert.NewDedupeCache(dedupePath, alert.DefaultDedupeTTL)
	if err != nil {
		return fmt.Errorf("open dedupe cache: %w", err)
	}

	router := alert.NewRouter(dedupe, alert.NewConsoleNotifier(log), log)
	m := metrics.NewServer(prometheus.NewRegistry())
	router = router.WithMetrics(m)

	engine := detect.NewEngine()
	srv, err := api.New(store, engine, router, m, log, cfg.Server.JSONLDir)
	if err != nil {
		return fmt.Errorf("build api server: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindHost, cfg.Server.BindPort)
	httpSrv := &http.Server{Addr: addr, Handler: srv}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infow("starting server", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Infow("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}
