package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/kvas-dev/chessdesk/internal/config"
	"github.com/kvas-dev/chessdesk/internal/msgcat"
	"github.com/kvas-dev/chessdesk/internal/obslog"
	"github.com/kvas-dev/chessdesk/internal/oracle"
	"github.com/kvas-dev/chessdesk/internal/render"
	"github.com/kvas-dev/chessdesk/internal/server"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	cat, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		logger.Fatal("message catalog init failed", zap.Error(err))
	}

	clientOpts := []oracle.Option{
		oracle.WithTimeout(cfg.OracleTimeout),
		oracle.WithRetry(cfg.OracleRetries),
		oracle.WithLogger(obslog.Named("oracle")),
	}
	var cache *oracle.Cache
	if cfg.RedisURL != "" {
		cache, err = oracle.NewCacheFromURL(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			logger.Fatal("oracle cache init failed", zap.Error(err))
		}
		clientOpts = append(clientOpts, oracle.WithCache(cache))
	}
	client := oracle.NewClient(cfg.OracleURL, clientOpts...)

	srv := server.New(client, render.New(), cat, cfg.DefaultDepth, obslog.Named("server"))
	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	if cache != nil {
		_ = cache.Close()
	}
}
