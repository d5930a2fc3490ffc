package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"mailboxapi/internal/servicetoken"
	"mailboxapi/internal/util"
	"mailboxapi/services/retention/internal/app"
	"mailboxapi/services/retention/internal/config"
	"mailboxapi/services/retention/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	window := cfg.Retention()
	appCore, err := app.New(app.Config{
		DatabaseURL:            cfg.DatabaseURL,
		DBMaxOpenConns:         cfg.DBMaxOpenConns,
		DBMaxIdleConns:         cfg.DBMaxIdleConns,
		RedisAddr:              cfg.RedisAddr,
		RedisPassword:          cfg.RedisPassword,
		QueueStream:            cfg.QueueStream,
		QueueGroup:             cfg.QueueGroup,
		QueueConcurrency:       cfg.QueueConcurrency,
		QueueMaxRetries:        cfg.QueueMaxRetries,
		QueueRetryDelaySeconds: cfg.QueueRetryDelaySeconds,
		Retention:              &window,
		Interval:               cfg.Interval(),
		RunOnStart:             cfg.RunOnStart,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := appCore.Start(ctx); err != nil {
		log.Fatalf("failed to start worker: %v", err)
	}

	var verifier *servicetoken.Verifier
	if cfg.InternalSecret != "" {
		extra, _ := servicetoken.ParseVerifySecrets(cfg.InternalVerifySecrets)
		verifier, err = servicetoken.NewVerifierWithOptions(servicetoken.VerifierOptions{
			Secret:         cfg.InternalSecret,
			Secrets:        extra,
			Audience:       server.Audience,
			AllowedIssuers: cfg.InternalIssuers,
		})
		if err != nil {
			log.Fatalf("failed to init service token verifier: %v", err)
		}
	}
	httpServer := server.New(server.Config{App: appCore, Verifier: verifier})
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("retention server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
	stop()
	appCore.Stop()
}
