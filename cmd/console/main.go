package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"digitalbank-console/core"
)

func main() {
	_ = godotenv.Load()
	cfg := core.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, logCloser, err := core.SetupLogging(cfg, "console.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	kv, err := core.OpenKV(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open token store", zap.String("backend", cfg.TokenStore), zap.Error(err))
	}
	if kv != nil {
		defer kv.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sess := core.NewSession(ctx, core.SessionOptions{
		Config:     cfg,
		KV:         kv,
		Registerer: reg,
		Logger:     logger,
	})
	if id := sess.State.Current(); id != nil {
		logger.Info("restored session", zap.String("username", id.Username))
	}

	// Gorilla cookie store for flash messages and the CSRF token.
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))

	router, stopNav := core.NewRouter(cfg, store, sess, reg, logger)
	defer stopNav()

	addr := cfg.ConsoleAddr()
	logger.Info("starting console", zap.String("addr", addr), zap.String("api", cfg.APIURL), zap.String("token_store", sess.Backend))
	errCh := make(chan error, 1)
	go func() { errCh <- router.Run(addr) }()
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
	}
}
