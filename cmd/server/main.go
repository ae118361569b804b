package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	webAdapter "pharmacy-pos/internal/adapters/web"
	"pharmacy-pos/internal/app"
	"pharmacy-pos/internal/config"
	"pharmacy-pos/internal/logger"
	"pharmacy-pos/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := store.Open(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("store", zap.Error(err))
	}
	defer closeStore()

	if cfg.JWT.Secret == config.DevJWTSecret {
		zl.Warn("using the development jwt secret; set POS_JWT_SECRET")
	}

	svc := app.NewAppService(repo, cfg.Session.IdleTTL, zl)
	if cfg.Session.IdleTTL > 0 {
		go sweepSessions(ctx, svc, cfg.Session.SweepInterval)
	} else {
		zl.Info("idle cart sweeping disabled")
	}

	handler := webAdapter.NewHandler(svc, webAdapter.Options{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		JWTSecret:      cfg.JWT.Secret,
		JWTIssuer:      cfg.JWT.Issuer,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		Logger:         zl.Named("http"),
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env),
			zap.String("store", cfg.Store.Driver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server", zap.Error(err))
		}
	case <-ctx.Done():
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zl.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}

// sweepSessions evicts idle carts until ctx is cancelled.
func sweepSessions(ctx context.Context, svc app.ApplicationService, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			svc.SweepSessions(now)
		}
	}
}
