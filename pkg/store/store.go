package store

import (
	"context"
	"errors"
	"time"

	"mailboxapi/pkg/domain"
)

var (
	// ErrDuplicateEmail is returned when a user with the same email exists.
	ErrDuplicateEmail = errors.New("duplicate user email")
	// ErrDuplicateLabel is returned when the user already owns a label with that name.
	ErrDuplicateLabel = errors.New("duplicate label name")
)

// Store defines persistence for the mailbox service.
type Store interface {
	UserStore
	EmailStore
	LabelStore
	FeedStore
	RetentionStore
	Ping(ctx context.Context) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	UpdateUserProfile(ctx context.Context, id string, update domain.ProfileUpdate) (domain.User, bool, error)
	UpdateUserPassword(ctx context.Context, id, passwordHash string) (bool, error)
}

// EmailStore reads and mutates emails. Every lookup is scoped by owner.
type EmailStore interface {
	ListEmails(ctx context.Context, userID string, filter domain.EmailFilter, page domain.PageRequest) ([]domain.Email, int64, error)
	GetEmail(ctx context.Context, userID, id string) (domain.Email, bool, error)
	SetEmailFlag(ctx context.Context, userID, id string, flag domain.EmailFlag, value bool) (domain.Email, bool, error)
	ToggleEmailFlag(ctx context.Context, userID, id string, flag domain.EmailFlag) (domain.Email, bool, error)
	DeleteEmail(ctx context.Context, userID, id string) (bool, error)
	EmailCounts(ctx context.Context, userID string) (domain.EmailCounts, error)
	CreateEmail(ctx context.Context, e domain.Email) error
	GetAttachment(ctx context.Context, userID, emailID, attachmentID string) (domain.Attachment, bool, error)
}

type LabelStore interface {
	ListLabels(ctx context.Context, userID string) ([]domain.Label, error)
	CreateLabel(ctx context.Context, l domain.Label) error
	DeleteLabel(ctx context.Context, userID, id string) (bool, error)
	// AddLabelToEmail gets or creates the label by name and links it.
	// It reports false when the email does not belong to userID.
	AddLabelToEmail(ctx context.Context, userID, emailID, name, color string) (bool, error)
	// RemoveLabelFromEmail reports false when the email or the label is missing.
	RemoveLabelFromEmail(ctx context.Context, userID, emailID, name string) (bool, error)
}

// FeedStore covers notifications and messages.
type FeedStore interface {
	ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	UnreadNotificationCount(ctx context.Context, userID string) (int64, error)
	MarkNotificationRead(ctx context.Context, userID, id string) (domain.Notification, bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, userID, id string) (bool, error)
	CreateNotification(ctx context.Context, n domain.Notification) error

	ListMessages(ctx context.Context, userID string, limit int) ([]domain.Message, error)
	UnreadMessageCount(ctx context.Context, userID string) (int64, error)
	MarkMessageRead(ctx context.Context, userID, id string) (domain.Message, bool, error)
	MarkAllMessagesRead(ctx context.Context, userID string) (int64, error)
	DeleteMessage(ctx context.Context, userID, id string) (bool, error)
	CreateMessage(ctx context.Context, m domain.Message) error
}

type RetentionStore interface {
	// Sweep deletes rows created before cutoff, one table per statement.
	Sweep(ctx context.Context, cutoff time.Time) (domain.SweepResult, error)
	SaveSweepRun(ctx context.Context, run domain.SweepRun) error
	ListSweepRuns(ctx context.Context, limit int) ([]domain.SweepRun, error)
}

// SessionStore issues and validates bearer tokens.
type SessionStore interface {
	NewSession(id domain.Identity) (string, error)
	Identify(token string) (domain.Identity, error)
	DeleteSession(token string) error
}

// UserSessionRevoker is an optional capability that revokes all sessions
// issued for a user up to a cutoff time.
type UserSessionRevoker interface {
	RevokeUserSessions(userID string, since time.Time) error
}
