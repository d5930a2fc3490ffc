package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"mailboxapi/internal/util"
	"mailboxapi/pkg/auth"
	"mailboxapi/pkg/domain"
	"mailboxapi/pkg/store"
)

const minNameLength = 2

// rejectPassword runs for logins that match no account.
var rejectPassword = auth.RejectPassword

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// Register creates a user account. Email matching is exact.
func (a *App) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	email := strings.TrimSpace(in.Email)
	if err := validateEmailAddress(email); err != nil {
		return domain.User{}, err
	}
	if err := validatePassword("password", in.Password); err != nil {
		return domain.User{}, err
	}
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return domain.User{}, err
	}
	role, err := a.signupRole(in.Role)
	if err != nil {
		return domain.User{}, err
	}

	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	if _, exists, err := a.store.GetUserByEmail(ctx, email); err != nil {
		return domain.User{}, storeErr("check email", err)
	} else if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := a.now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.User{}, ErrEmailAlreadyExists
		}
		return domain.User{}, storeErr("create user", err)
	}
	return user, nil
}

func (a *App) signupRole(raw string) (domain.UserRole, error) {
	switch domain.UserRole(strings.TrimSpace(raw)) {
	case "", domain.RoleUser:
		return domain.RoleUser, nil
	case domain.RoleAdmin:
		if !a.allowAdminSignup {
			return "", ErrRoleNotAllowed
		}
		return domain.RoleAdmin, nil
	default:
		return "", invalid("role", "Role must be user or admin")
	}
}

// Login verifies credentials and issues a bearer token.
func (a *App) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.User{}, "", ErrInvalidCredentials
	}
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, "", storeErr("fetch user", err)
	}
	if !ok {
		rejectPassword(password)
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(domain.Identity{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Authenticate resolves the identity carried by a bearer token.
func (a *App) Authenticate(token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	id, err := a.sessions.Identify(token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return id, nil
}

// Logout revokes the token until it would have expired.
func (a *App) Logout(token string) error {
	if err := a.sessions.DeleteSession(token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Profile returns the user with unread counters fetched concurrently.
func (a *App) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Profile{}, storeErr("fetch user", err)
	}
	if !ok {
		return domain.Profile{}, ErrUserNotFound
	}
	profile := domain.Profile{
		ID:     user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
		Avatar: user.Avatar,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.store.UnreadMessageCount(gctx, userID)
		profile.UnreadMessages = n
		return err
	})
	g.Go(func() error {
		n, err := a.store.UnreadNotificationCount(gctx, userID)
		profile.UnreadNotifications = n
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Profile{}, storeErr("count unread", err)
	}
	return profile, nil
}

type ProfileInput struct {
	Name   *string
	Avatar *string
}

// UpdateProfile changes name and avatar. Nil fields are left unchanged.
func (a *App) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (domain.User, error) {
	update := domain.ProfileUpdate{Avatar: in.Avatar}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return domain.User{}, err
		}
		update.Name = &name
	}
	if update.Avatar != nil {
		avatar := strings.TrimSpace(*update.Avatar)
		update.Avatar = &avatar
	}
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	user, ok, err := a.store.UpdateUserProfile(ctx, userID, update)
	if err != nil {
		return domain.User{}, storeErr("update profile", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword reports false when currentPassword does not verify. On
// success every token issued before the change stops working.
func (a *App) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (bool, error) {
	if currentPassword == "" {
		return false, invalid("currentPassword", "Current password is required")
	}
	if err := validatePassword("newPassword", newPassword); err != nil {
		return false, err
	}
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return false, storeErr("fetch user", err)
	}
	if !ok {
		return false, ErrUserNotFound
	}
	if !auth.CheckPassword(currentPassword, user.PasswordHash) {
		return false, nil
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	// Token iat has second precision. Tokens from earlier seconds are
	// revoked; a token issued right after the change in the same second
	// keeps working.
	cutoff := a.now().UTC().Truncate(time.Second).Add(-time.Nanosecond)
	updated, err := a.store.UpdateUserPassword(ctx, userID, hash)
	if err != nil {
		return false, storeErr("update password", err)
	}
	if !updated {
		return false, ErrUserNotFound
	}
	if revoker, ok := a.sessions.(store.UserSessionRevoker); ok {
		if err := revoker.RevokeUserSessions(userID, cutoff); err != nil {
			return true, fmt.Errorf("revoke user tokens: %w", err)
		}
	}
	return true, nil
}

func validateEmailAddress(email string) error {
	if email == "" {
		return invalid("email", "Valid email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email", "Valid email is required")
	}
	return nil
}

func validatePassword(field, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return invalid(field, "Password must be at most 72 bytes")
		}
		return invalid(field, fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength))
	}
	return nil
}

func validateName(name string) error {
	if utf8.RuneCountInString(name) < minNameLength {
		return invalid("name", fmt.Sprintf("Name must be at least %d characters", minNameLength))
	}
	return nil
}
