package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mailboxapi/internal/ratelimit"
	"mailboxapi/internal/util"
	"mailboxapi/pkg/domain"
	"mailboxapi/services/mailbox/internal/app"
	"mailboxapi/services/mailbox/internal/security"
)

const maxBodyBytes = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	RedisAddr                  string
	RedisPassword              string
	AllowedOrigins             []string
	TrustedProxyCIDRs          []string
	SignupRateLimitPerMinute   int
	LoginRateLimitPerMinute    int
	PasswordRateLimitPerMinute int
	ExposeErrors               bool
}

// Server exposes the mailbox HTTP API.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	allowedOrigins  []string
	trustedProxies  *util.TrustedProxies
	exposeErrors    bool
	signupLimiter   ratelimit.Limiter
	loginLimiter    ratelimit.Limiter
	passwordLimiter ratelimit.Limiter
	alerter         *security.AuditAlerter
	closers         []io.Closer
}

// New constructs the server with routes configured. Rate limits use Redis
// when RedisAddr is set and a per-process limiter otherwise.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app required")
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		allowedOrigins: cfg.AllowedOrigins,
		trustedProxies: trusted,
		exposeErrors:   cfg.ExposeErrors,
	}

	rateWindow := time.Minute
	newLimiter := func(name string, limit, def int) (ratelimit.Limiter, error) {
		if limit <= 0 {
			limit = def
		}
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return ratelimit.NewLocalLimiter(limit, rateWindow)
		}
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "mailbox:ratelimit:"+name, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		s.closers = append(s.closers, limiter)
		return limiter, nil
	}
	if s.signupLimiter, err = newLimiter("signup", cfg.SignupRateLimitPerMinute, 5); err != nil {
		return nil, err
	}
	if s.loginLimiter, err = newLimiter("login", cfg.LoginRateLimitPerMinute, 10); err != nil {
		return nil, err
	}
	if s.passwordLimiter, err = newLimiter("password", cfg.PasswordRateLimitPerMinute, 5); err != nil {
		return nil, err
	}
	if s.alerter = security.NewAuditAlerter(cfg.RedisAddr, cfg.RedisPassword, "mailbox:alerts"); s.alerter != nil {
		s.closers = append(s.closers, s.alerter)
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(
		util.WithRequestLog("mailbox",
			util.WithSecurityHeaders(
				util.WithCORS(s.allowedOrigins, s.mux))))
}

// Close releases the rate limiter and alerter connections.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.Handle("POST /api/auth/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("GET /api/auth/profile", s.authenticated(s.handleGetProfile))
	s.mux.Handle("PUT /api/auth/profile", s.authenticated(s.handleUpdateProfile))
	s.mux.Handle("PUT /api/auth/change-password", s.authenticated(s.handleChangePassword))

	// emails
	s.mux.Handle("GET /api/emails", s.authenticated(s.handleListEmails))
	s.mux.Handle("GET /api/emails/counts", s.authenticated(s.handleEmailCounts))
	s.mux.Handle("GET /api/emails/labels", s.authenticated(s.handleListLabels))
	s.mux.Handle("POST /api/emails/labels", s.authenticated(s.handleCreateLabel))
	s.mux.Handle("DELETE /api/emails/labels/{id}", s.authenticated(s.handleDeleteLabel))
	s.mux.Handle("GET /api/emails/{id}", s.authenticated(s.handleGetEmail))
	s.mux.Handle("DELETE /api/emails/{id}", s.authenticated(s.handleDeleteEmail))
	s.mux.Handle("PATCH /api/emails/{id}/read", s.authenticated(s.handleMarkEmailRead))
	s.mux.Handle("PATCH /api/emails/{id}/star", s.authenticated(s.handleToggleStar))
	s.mux.Handle("PATCH /api/emails/{id}/important", s.authenticated(s.handleToggleImportant))
	s.mux.Handle("PATCH /api/emails/{id}/labels/add", s.authenticated(s.handleAddLabel))
	s.mux.Handle("PATCH /api/emails/{id}/labels/remove", s.authenticated(s.handleRemoveLabel))
	s.mux.Handle("GET /api/emails/{id}/attachments/{attachmentId}", s.authenticated(s.handleAttachmentURL))

	// notifications & messages
	s.mux.Handle("GET /api/notifications", s.authenticated(s.handleListNotifications))
	s.mux.Handle("GET /api/notifications/unread-count", s.authenticated(s.handleUnreadNotifications))
	s.mux.Handle("PATCH /api/notifications/mark-all-read", s.authenticated(s.handleMarkAllNotificationsRead))
	s.mux.Handle("PATCH /api/notifications/{id}/read", s.authenticated(s.handleMarkNotificationRead))
	s.mux.Handle("DELETE /api/notifications/{id}", s.authenticated(s.handleDeleteNotification))
	s.mux.Handle("GET /api/messages", s.authenticated(s.handleListMessages))
	s.mux.Handle("GET /api/messages/unread-count", s.authenticated(s.handleUnreadMessages))
	s.mux.Handle("PATCH /api/messages/mark-all-read", s.authenticated(s.handleMarkAllMessagesRead))
	s.mux.Handle("PATCH /api/messages/{id}/read", s.authenticated(s.handleMarkMessageRead))
	s.mux.Handle("DELETE /api/messages/{id}", s.authenticated(s.handleDeleteMessage))

	// navigation
	s.mux.Handle("GET /api/navigation/items", s.authenticated(s.handleNavigationItems))
	s.mux.Handle("GET /api/navigation/upgrade-info", s.authenticated(s.handleUpgradeInfo))

	// admin
	s.mux.Handle("POST /api/admin/sweeps", s.adminOnly(s.handleTriggerSweep))
	s.mux.Handle("GET /api/admin/sweeps", s.adminOnly(s.handleListSweeps))
	s.mux.Handle("GET /api/admin/sweeps/jobs/{id}", s.adminOnly(s.handleSweepJob))

	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.app.Ping(ctx); err != nil {
		util.LoggerFromContext(r.Context()).Warn("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.Identity)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Access token required")
			return
		}
		id, err := s.app.Authenticate(token)
		if err != nil {
			s.audit(r, "mailbox.token.verify", "fail", "reason", err.Error())
			writeError(w, http.StatusForbidden, app.ErrInvalidToken.Error())
			return
		}
		ctx := util.ContextWithLogger(r.Context(), util.LoggerFromContext(r.Context()).With("user_id", id.UserID))
		next(w, r.WithContext(ctx), id)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, id domain.Identity) {
		if id.Role != domain.RoleAdmin {
			s.audit(r, "mailbox.admin.authorize", "fail", "user_id", id.UserID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, app.ErrForbidden.Error())
			return
		}
		next(w, r, id)
	})
}

// envelope is the response shape shared by every API route.
type envelope struct {
	Success    bool               `json:"success"`
	Data       any                `json:"data,omitempty"`
	Message    string             `json:"message,omitempty"`
	Error      string             `json:"error,omitempty"`
	Pagination *domain.Pagination `json:"pagination,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

var notFoundErrors = []error{
	app.ErrUserNotFound,
	app.ErrEmailNotFound,
	app.ErrLabelNotFound,
	app.ErrNotificationNotFound,
	app.ErrMessageNotFound,
	app.ErrAttachmentNotFound,
	app.ErrSweepJobNotFound,
}

var conflictErrors = []error{
	app.ErrEmailAlreadyExists,
	app.ErrLabelExists,
	app.ErrSweepInProgress,
}

// writeAppError maps app errors onto HTTP statuses.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *app.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, http.StatusBadRequest, vErr.Message)
		return
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			writeError(w, http.StatusNotFound, target.Error())
			return
		}
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			writeError(w, http.StatusConflict, target.Error())
			return
		}
	}
	switch {
	case errors.Is(err, app.ErrRoleNotAllowed):
		writeError(w, http.StatusBadRequest, app.ErrRoleNotAllowed.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, app.ErrInvalidCredentials.Error())
	case errors.Is(err, app.ErrInvalidToken):
		writeError(w, http.StatusForbidden, app.ErrInvalidToken.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, app.ErrForbidden.Error())
	case errors.Is(err, app.ErrStorageUnavailable):
		util.LoggerFromContext(r.Context()).Error("storage unavailable", "err", err)
		writeError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "err", err)
		msg := "internal error"
		if s.exposeErrors {
			msg = err.Error()
		}
		writeError(w, http.StatusInternalServerError, msg)
	}
}

// decodeJSON reads a bounded JSON body into dst and writes a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// pathID returns the {name} path value when it is a UUID and writes a 400
// naming the entity otherwise.
func pathID(w http.ResponseWriter, r *http.Request, name, entity string) (string, bool) {
	id := r.PathValue(name)
	if !util.IsID(id) {
		writeError(w, http.StatusBadRequest, "Invalid "+entity+" ID")
		return "", false
	}
	return id, true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.trustedProxies)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	alert, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security alert check failed", "event", event, "err", err)
		return
	}
	if alert.Count == alert.Threshold && alert.Triggered {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", alert.Count,
			"window", alert.Window.String(),
		)
	}
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	ok, retryAfter := limiter.Allow(key)
	if ok {
		return true
	}
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
