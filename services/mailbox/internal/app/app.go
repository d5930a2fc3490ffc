package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"mailboxapi/pkg/queue"
	"mailboxapi/pkg/retention"
	"mailboxapi/pkg/storage"
	"mailboxapi/pkg/store"
)

const memoryDatabaseURL = "memory://"

// SweepQueue hands sweeps to the retention worker.
type SweepQueue interface {
	Enqueue(ctx context.Context, retentionHours int, requestedBy string) (queue.SweepJob, error)
	GetJob(ctx context.Context, jobID string) (queue.SweepJob, bool, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int
	RedisAddr      string
	RedisPassword  string
	JWTSecret      string
	SessionTTL     time.Duration
	JWTIssuer      string
	JWTAudience    string
	JWTLeeway      time.Duration

	DBOperationTimeout  time.Duration
	AllowAdminSignup    bool
	AttachmentURLExpiry time.Duration
	// Retention is the default sweep window; nil means
	// retention.DefaultRetention and zero sweeps everything.
	Retention *time.Duration

	Store      store.Store
	Sessions   store.SessionStore
	Objects    storage.ObjectStore
	Sweeper    *retention.Sweeper
	SweepQueue SweepQueue
	// Now overrides the clock used for password-change revocation.
	Now func() time.Time
}

// App is the core application service wiring together storage and auth logic.
type App struct {
	store    store.Store
	sessions store.SessionStore
	objects  storage.ObjectStore
	sweeper  *retention.Sweeper
	queue    SweepQueue
	closers  []io.Closer

	dbTimeout           time.Duration
	allowAdminSignup    bool
	retention           time.Duration
	attachmentURLExpiry time.Duration
	now                 func() time.Time
}

// New constructs the application. Stores not injected through cfg are
// built from the connection settings.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.DBOperationTimeout <= 0 {
		cfg.DBOperationTimeout = 5 * time.Second
	}
	window := retention.DefaultRetention
	if cfg.Retention != nil {
		if *cfg.Retention < 0 {
			return nil, retention.ErrNegativeRetention
		}
		window = *cfg.Retention
	}
	if cfg.AttachmentURLExpiry <= 0 {
		cfg.AttachmentURLExpiry = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	a := &App{
		objects:             cfg.Objects,
		queue:               cfg.SweepQueue,
		dbTimeout:           cfg.DBOperationTimeout,
		allowAdminSignup:    cfg.AllowAdminSignup,
		retention:           window,
		attachmentURLExpiry: cfg.AttachmentURLExpiry,
		now:                 cfg.Now,
	}
	redisAddr := strings.TrimSpace(cfg.RedisAddr)

	dataStore := cfg.Store
	if dataStore == nil {
		switch dsn := strings.TrimSpace(cfg.DatabaseURL); dsn {
		case "":
			return nil, errors.New("database URL required")
		case memoryDatabaseURL:
			dataStore = store.NewMemoryStore()
		default:
			gs, err := store.NewGormStore(dsn, store.WithPoolLimits(cfg.DBMaxOpenConns, cfg.DBMaxIdleConns))
			if err != nil {
				return nil, fmt.Errorf("init postgres store: %w", err)
			}
			a.closers = append(a.closers, gs)
			dataStore = gs
		}
	}
	a.store = dataStore

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		var revoker store.TokenRevoker
		if redisAddr != "" {
			rr := store.NewRedisTokenRevoker(redisAddr, cfg.RedisPassword)
			a.closers = append(a.closers, rr)
			revoker = rr
		} else {
			revoker = store.NewMemoryTokenRevoker()
		}
		jwtStore, err := store.NewJWTSessionStoreWithOptions(cfg.JWTSecret, cfg.SessionTTL, revoker, store.JWTOptions{
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Leeway:   cfg.JWTLeeway,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessionStore = jwtStore
	}
	a.sessions = sessionStore

	a.sweeper = cfg.Sweeper
	if a.sweeper == nil {
		var locker retention.Locker
		if redisAddr != "" {
			rl, err := retention.NewRedisLocker(redisAddr, cfg.RedisPassword, "", 0)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("init sweep lock: %w", err)
			}
			a.closers = append(a.closers, rl)
			locker = rl
		}
		a.sweeper = retention.NewSweeper(dataStore, locker)
	}
	return a, nil
}

// Sweeper exposes the retention sweeper so main can schedule it.
func (a *App) Sweeper() *retention.Sweeper {
	return a.sweeper
}

// Ping checks that the datastore answers.
func (a *App) Ping(ctx context.Context) error {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	if err := a.store.Ping(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// Close releases connections the app opened itself.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) dbCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.dbTimeout)
}

// storeErr wraps a datastore failure. Deadlines and dropped connections are
// reported as ErrStorageUnavailable.
func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
