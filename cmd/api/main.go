package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/wastebank/internal/api"
	"github.com/punchamoorthee/wastebank/internal/catalog"
	"github.com/punchamoorthee/wastebank/internal/config"
	"github.com/punchamoorthee/wastebank/internal/identity"
	"github.com/punchamoorthee/wastebank/internal/logging"
	"github.com/punchamoorthee/wastebank/internal/member"
	"github.com/punchamoorthee/wastebank/internal/service"
	"github.com/punchamoorthee/wastebank/internal/session"
	"github.com/punchamoorthee/wastebank/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ledgerStore, closeStore, err := store.Open(ctx, cfg.StoreDriver, cfg.DBSource)
	if err != nil {
		logger.Error("unable to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Initialize Layers
	directory := member.NewDirectory(ledgerStore, member.NewCache(), logger)
	resolver := member.NewResolver(ledgerStore)
	cat := catalog.New(ledgerStore)
	poster := service.NewPostingService(resolver, ledgerStore, directory, logger)
	sessions := session.NewManager(session.Deps{Resolver: resolver, Catalog: cat, Poster: poster})
	auth := identity.NewAuthenticator(ledgerStore, cfg.JWTSecret, cfg.TokenTTL)

	handler := api.NewHandler(api.Deps{
		Directory: directory,
		Resolver:  resolver,
		Admin:     member.NewAdmin(ledgerStore, directory, logger),
		Catalog:   cat,
		Sessions:  sessions,
		Ledger:    ledgerStore,
		Auth:      auth,
		Logger:    logger,
	})

	go sweepSessions(ctx, sessions, cfg.SessionIdle, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func sweepSessions(ctx context.Context, m *session.Manager, idle time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(session.SweepInterval(idle))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(idle); n > 0 {
				logger.Info("idle sessions closed", "count", n)
			}
		}
	}
}
