package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"salereport/backend/internal/app"
	"salereport/backend/internal/config"
	"salereport/backend/internal/httpapi"
	"salereport/backend/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server terminated with error", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	backends, err := app.Open(openCtx, cfg, zl)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.Close(); err != nil {
			zl.Warn("close error", zap.Error(err))
		}
	}()

	svc := backends.Service(cfg, zl.Named("service"))
	api := httpapi.New(svc, zl.Named("http"), cfg.AllowedOrigin)
	server := newHTTPServer(cfg.Address(), api.Handler())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zl.Info("sale report backend listening",
			zap.String("addr", cfg.Address()),
			zap.Strings("shops", svc.Shops()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		zl.Info("server stopped")
		return nil
	})

	return g.Wait()
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
