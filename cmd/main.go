package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/fanout-service/config"
	"github.com/cwrk-planet/fanout-service/internal/postgres"
	"github.com/cwrk-planet/fanout-service/internal/service"
	httpx "github.com/cwrk-planet/fanout-service/internal/transport/http"
	"github.com/cwrk-planet/fanout-service/internal/transport/ws"
	"github.com/cwrk-planet/fanout-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting fanout-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	if err := postgres.RunMigrations(cfg.Postgres.DSN); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	db, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.Postgres.DSN,
		MaxConns: cfg.Postgres.MaxConns,
		MinConns: cfg.Postgres.MinConns,
	})
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	// --- repos ---
	messageRepo := postgres.NewMessageRepository(db.Pool)
	directoryRepo := postgres.NewDirectoryRepository(db.Pool)

	// --- services ---
	authSvc := service.NewAuthService(directoryRepo, nil)
	presence := service.NewPresenceTracker(directoryRepo)
	messageSvc := service.NewMessageService(messageRepo, directoryRepo)

	// --- WS Hub & Server ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, authSvc, presence, messageSvc, ws.Config{
		PingInterval:   cfg.WS.PingInterval,
		AllowedOrigins: cfg.WS.AllowedOrigins,
	})

	// --- HTTP ---
	router := httpx.NewRouter(wsServer, presence, cfg.WS.AllowedOrigins)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
