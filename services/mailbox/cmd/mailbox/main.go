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
	"mailboxapi/internal/util"
	"mailboxapi/pkg/queue"
	"mailboxapi/pkg/retention"
	"mailboxapi/pkg/storage"
	"mailboxapi/services/mailbox/internal/app"
	"mailboxapi/services/mailbox/internal/config"
	"mailboxapi/services/mailbox/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	window := cfg.Retention()
	appCfg := app.Config{
		DatabaseURL:         cfg.DatabaseURL,
		DBMaxOpenConns:      cfg.DBMaxOpenConns,
		DBMaxIdleConns:      cfg.DBMaxIdleConns,
		RedisAddr:           cfg.RedisAddr,
		RedisPassword:       cfg.RedisPassword,
		JWTSecret:           cfg.JWTSecret,
		SessionTTL:          cfg.JWTTTLDuration(),
		JWTIssuer:           cfg.JWTIssuer,
		JWTAudience:         cfg.JWTAudience,
		JWTLeeway:           cfg.JWTLeewayDuration(),
		DBOperationTimeout:  cfg.DBOperationTimeoutDuration(),
		AllowAdminSignup:    cfg.AllowAdminSignup,
		AttachmentURLExpiry: cfg.AttachmentURLExpiryDuration(),
		Retention:           &window,
	}

	if cfg.ObjectStoreEndpoint != "" {
		objects, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.ObjectStoreEndpoint,
			AccessKey: cfg.ObjectStoreAccessKey,
			SecretKey: cfg.ObjectStoreSecretKey,
			Bucket:    cfg.ObjectStoreBucket,
			Region:    cfg.ObjectStoreRegion,
			UseSSL:    cfg.ObjectStoreUseSSL,
		})
		if err != nil {
			log.Fatalf("failed to init object store: %v", err)
		}
		appCfg.Objects = objects
	}

	if cfg.SweepQueueStream != "" && cfg.RedisAddr != "" {
		q, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.SweepQueueStream,
		})
		if err != nil {
			log.Fatalf("failed to init sweep queue: %v", err)
		}
		defer q.Close()
		appCfg.SweepQueue = q
	}

	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		AllowedOrigins:             cfg.AllowedOrigins,
		TrustedProxyCIDRs:          cfg.TrustedProxyCIDRs,
		SignupRateLimitPerMinute:   cfg.SignupRateLimitPerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		PasswordRateLimitPerMinute: cfg.PasswordRateLimitPerMinute,
		ExposeErrors:               cfg.ExposeErrors,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	defer httpServer.Close()

	if cfg.RunSweeper {
		scheduler := retention.NewScheduler(appCore.Sweeper(), retention.SchedulerConfig{
			Interval:   cfg.SweepIntervalDuration(),
			Retention:  window,
			RunOnStart: true,
		})
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

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

	slog.Info("mailbox server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}
