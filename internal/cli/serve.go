package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/satexplorer/internal/api"
	"github.com/star/satexplorer/internal/auth"
	"github.com/star/satexplorer/internal/catalog"
	"github.com/star/satexplorer/internal/config"
	"github.com/star/satexplorer/internal/explorer"
	"github.com/star/satexplorer/internal/metrics"
	"github.com/star/satexplorer/internal/selection"
	"github.com/star/satexplorer/internal/storage"
	"github.com/star/satexplorer/internal/stream"
	"github.com/star/satexplorer/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the explorer web service",
	Long: `Run the explorer web service.

Serves the main view at /, the selected-assets overview at /selected, the JSON
API under /api/v1/ and Prometheus metrics at /metrics.

Examples:
  satexplorer serve
  satexplorer serve --addr :9090 --db /var/lib/satexplorer/state.db
  SATEXPLORER_AUTH_ENABLED=true SATEXPLORER_AUTH_TOKEN=secret satexplorer serve`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(os.Stdout)
		if err != nil {
			return err
		}
		cfg, err := config.Load(configPath, cmd.Flags(), logger)
		if err != nil {
			logger.Error("invalid configuration", "error", err)
			return err
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logger)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "HTTP listen address")
	serveCmd.Flags().String("db", "", "Path to the SQLite state database")
	serveCmd.Flags().Duration("stale-time", 5*time.Minute, "How long a fetched catalog counts as fresh")
	serveCmd.Flags().Bool("prefetch", true, "Load the catalog at startup")
	serveCmd.Flags().Bool("ephemeral", false, "Keep the selection in memory only")
	rootCmd.AddCommand(serveCmd)
}

func newCatalogCache(cfg config.Config, logger *slog.Logger) (*catalog.Cache, error) {
	src, err := catalog.NewHTTPSource(catalog.SourceConfig{
		BaseURL: cfg.Source.BaseURL,
		Path:    cfg.Source.Path,
		Timeout: cfg.Source.Timeout,
		Params:  cfg.Source.Params,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog source", "component", "catalog", "endpoint", src.Endpoint())

	return catalog.NewCache(src, catalog.NewStore(), catalog.CacheConfig{
		StaleTime:      cfg.Cache.StaleTime,
		Retries:        cfg.Cache.Retries,
		RetryBaseDelay: cfg.Cache.RetryBaseDelay,
		FetchTimeout:   catalog.LoadBudget(cfg.Source.Timeout, cfg.Cache.Retries, cfg.Cache.RetryBaseDelay),
		SourceName:     src.Endpoint(),
	}, logger), nil
}

// newPersister returns the selection persister and a func releasing it.
func newPersister(cfg config.StorageConfig, logger *slog.Logger) (selection.Persister, func() error, error) {
	if cfg.Ephemeral {
		logger.Warn("selection is not persisted", "component", "storage")
		return &selection.MemoryPersister{}, func() error { return nil }, nil
	}
	kv, err := storage.Open(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening state database: %w", err)
	}
	logger.Info("state database opened", "component", "storage", "path", cfg.Path)
	return selection.NewKVPersister(kv), kv.Close, nil
}

// invalidateOn marks the catalog stale each time sig fires, so the next read
// revalidates without blocking on the source.
func invalidateOn(ctx context.Context, sig <-chan os.Signal, c interface{ Invalidate() }, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			c.Invalidate()
			logger.Info("catalog invalidated", "component", "catalog")
		}
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	persister, closeStore, err := newPersister(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	cache, err := newCatalogCache(cfg, logger)
	if err != nil {
		return err
	}

	// SIGHUP forces a revalidation on the next read.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go invalidateOn(ctx, hup, cache, logger)

	broadcaster := stream.NewBroadcaster(logger)
	sel := selection.NewStore(persister, logger, selection.WithObserver(broadcaster.Publish))

	streamHandler := stream.NewHandler(broadcaster, sel, stream.Config{
		MaxConcurrentPerIP: cfg.Stream.MaxConcurrentPerIP,
		MaxTotal:           cfg.Stream.MaxTotal,
		KeepaliveInterval:  cfg.Stream.KeepaliveInterval,
		TrustProxy:         cfg.HTTP.TrustProxy,
	}, logger)

	srv := api.NewServer(cfg.HTTP.Addr, logger, auth.Config{
		Enabled: cfg.Auth.Enabled,
		Token:   cfg.Auth.Token,
	}, api.Deps{
		Explorer:   explorer.New(cache, sel, logger),
		Catalog:    cache,
		Stream:     streamHandler,
		Web:        web.Content,
		TrustProxy: cfg.HTTP.TrustProxy,
	})

	srv.HTTPServer().RegisterOnShutdown(streamHandler.Close)

	if cfg.Cache.Prefetch {
		cache.Prefetch(ctx)
	}

	// Background goroutine to update the catalog age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := cache.AgeSeconds(); age >= 0 {
					metrics.SetCatalogAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTP.Addr,
			"auth_enabled", cfg.Auth.Enabled,
			"stale_time_seconds", cfg.Cache.StaleTime.Seconds(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("server listen error", "error", err)
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
