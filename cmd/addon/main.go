package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"raibridge/internal/api/handler"
	"raibridge/internal/api/middleware"
	"raibridge/internal/config"
	"raibridge/internal/infrastructure/cache"
	"raibridge/internal/infrastructure/upstream"
	"raibridge/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := cache.New(cache.Config{
		CatalogTTL:    cfg.Cache.CatalogTTL,
		StreamTTL:     cfg.Cache.StreamTTL,
		MetaTTL:       cfg.Cache.MetaTTL,
		AuthTTL:       cfg.Cache.AuthTTL,
		SweepInterval: cfg.Cache.SweepInterval,
		Caps: map[string]int{
			cache.NamespaceCatalog: cfg.Cache.CatalogMax,
			cache.NamespaceStream:  cfg.Cache.StreamMax,
			cache.NamespaceMeta:    cfg.Cache.MetaMax,
		},
	})
	store.StartSweeper(ctx)

	sessions := usecase.NewSessionStore(store, usecase.SessionStoreConfig{
		MaxSessions:     cfg.Session.MaxSessions,
		Timeout:         cfg.Session.Timeout,
		CleanupInterval: cfg.Session.CleanupInterval,
	}, logger)
	sessions.StartCleanup(ctx)

	client := upstream.NewClient(upstream.ClientConfig{
		BaseURL:           cfg.Upstream.BaseURL,
		RelinkerURL:       cfg.Upstream.RelinkerURL,
		RequestTimeout:    cfg.Upstream.RequestTimeout,
		AuthTimeout:       cfg.Upstream.AuthTimeout,
		StreamTimeout:     cfg.Upstream.StreamTimeout,
		RequestsPerSecond: cfg.Upstream.RequestsPerSecond,
		RequestBurst:      cfg.Upstream.RequestBurst,
	})
	auth := upstream.NewAuthClient(client, sessions, logger)
	fetcher := upstream.NewCatalogFetcher(client, auth)

	resolver := usecase.NewStreamResolver(
		upstream.Strategies(client, auth),
		upstream.NewSubtitleExtractor(client, auth),
		store,
		usecase.StreamResolverConfig{
			QualityPreference: cfg.Stream.QualityPreference,
			EnableSubtitles:   cfg.Stream.EnableSubtitles,
		},
		logger,
	)
	catalogSvc := usecase.NewCatalogService(fetcher, store, logger)
	metaSvc := usecase.NewMetaService(fetcher, store, logger)

	addon := handler.NewAddonHandler(catalogSvc, metaSvc, resolver, auth, sessions, handler.AddonHandlerConfig{
		RateMaxRequests: cfg.Session.RateMaxRequests,
		RateWindow:      cfg.Session.RateWindow,
	}, logger)
	sessionHandler := handler.NewSessionHandler(sessions, store)

	r := setupRouter(logger, addon, sessionHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting addon server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupRouter(logger *slog.Logger, addon *handler.AddonHandler, sessionHandler *handler.SessionHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Metrics)

	r.Get("/health", handler.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/sessions", sessionHandler.Stats)

	mountAddon(r, addon)
	r.Route("/{config}", func(sub chi.Router) {
		mountAddon(sub, addon)
	})

	return r
}

// mountAddon registers the client-protocol routes, with and without the
// user-config path prefix.
func mountAddon(r chi.Router, addon *handler.AddonHandler) {
	r.Get("/manifest.json", handler.ServeManifest)
	r.Get("/catalog/{type}/{id}", addon.Catalog)
	r.Get("/catalog/{type}/{id}/{extra}", addon.Catalog)
	r.Get("/meta/{type}/{id}", addon.Meta)
	r.Get("/stream/{type}/{id}", addon.Stream)
}
