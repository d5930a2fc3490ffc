// Command seed fills a mailbox database with a demo account, or imports
// .eml files into an existing account.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"mailboxapi/internal/util"
	"mailboxapi/pkg/storage"
	"mailboxapi/services/mailbox/internal/app"
	"mailboxapi/services/mailbox/internal/config"
)

type seedConfig struct {
	configPath string
	emlDir     string
	email      string
	password   string
}

func main() {
	_ = godotenv.Load()
	opts := parseSeedFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	if err := run(opts, cfg); err != nil {
		logger.Error("seed failed", "err", err)
		os.Exit(1)
	}
}

func parseSeedFlags() seedConfig {
	configPath := flag.String("config", config.ConfigPath, "mailbox config file")
	emlDir := flag.String("eml", "", "directory of .eml files to import instead of the demo data")
	email := flag.String("user", demoEmail, "account that receives imported .eml files")
	password := flag.String("password", demoPassword, "password of the -user account")
	flag.Parse()
	return seedConfig{configPath: *configPath, emlDir: *emlDir, email: *email, password: *password}
}

func run(opts seedConfig, cfg config.FileConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	appCfg := app.Config{
		DatabaseURL:        cfg.DatabaseURL,
		DBMaxOpenConns:     cfg.DBMaxOpenConns,
		DBMaxIdleConns:     cfg.DBMaxIdleConns,
		JWTSecret:          cfg.JWTSecret,
		SessionTTL:         cfg.JWTTTLDuration(),
		JWTIssuer:          cfg.JWTIssuer,
		JWTAudience:        cfg.JWTAudience,
		DBOperationTimeout: cfg.DBOperationTimeoutDuration(),
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
			return fmt.Errorf("init object store: %w", err)
		}
		appCfg.Objects = objects
	}
	a, err := app.New(appCfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	if opts.emlDir != "" {
		return importDir(ctx, a, opts)
	}

	sum, err := seedDemo(ctx, a, time.Now())
	if errors.Is(err, app.ErrEmailAlreadyExists) {
		slog.Info("demo account already exists, nothing to seed", "email", demoEmail)
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("database seeded",
		"user", sum.User.Email,
		"labels", sum.Labels,
		"emails", sum.Emails,
		"notifications", sum.Notifications,
		"messages", sum.Messages,
	)
	return nil
}

func importDir(ctx context.Context, a *app.App, opts seedConfig) error {
	user, _, err := a.Login(ctx, opts.email, opts.password)
	if err != nil {
		return fmt.Errorf("login %s: %w", opts.email, err)
	}
	paths, err := filepath.Glob(filepath.Join(opts.emlDir, "*.eml"))
	if err != nil {
		return fmt.Errorf("list eml files: %w", err)
	}
	imported := 0
	for _, path := range paths {
		if err := importFile(ctx, a, user.ID, path); err != nil {
			slog.Warn("skip eml file", "path", path, "err", err)
			continue
		}
		imported++
	}
	slog.Info("eml import finished", "user", user.Email, "imported", imported, "skipped", len(paths)-imported)
	return nil
}

func importFile(ctx context.Context, a *app.App, userID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	in, err := parseEML(f)
	if err != nil {
		return err
	}
	_, err = a.ImportEmail(ctx, userID, in)
	return err
}
