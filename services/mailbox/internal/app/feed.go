package app

import (
	"context"
	"fmt"
	"strings"

	"mailboxapi/internal/util"
	"mailboxapi/pkg/domain"
	"mailboxapi/pkg/store"
)

// ParseFeedLimit validates the optional limit of a feed listing.
func ParseFeedLimit(raw string) (int, error) {
	n, err := optionalInt(raw, store.DefaultFeedLimit)
	if err != nil || n < 1 || n > store.MaxFeedLimit {
		return 0, invalid("limit", fmt.Sprintf("Limit must be between 1 and %d", store.MaxFeedLimit))
	}
	return n, nil
}

func (a *App) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	items, err := a.store.ListNotifications(ctx, userID, store.FeedLimit(limit))
	if err != nil {
		return nil, storeErr("list notifications", err)
	}
	return items, nil
}

func (a *App) UnreadNotificationCount(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	n, err := a.store.UnreadNotificationCount(ctx, userID)
	if err != nil {
		return 0, storeErr("count notifications", err)
	}
	return n, nil
}

func (a *App) MarkNotificationRead(ctx context.Context, userID, id string) (domain.Notification, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	n, ok, err := a.store.MarkNotificationRead(ctx, userID, id)
	if err != nil {
		return domain.Notification{}, storeErr("mark notification read", err)
	}
	if !ok {
		return domain.Notification{}, ErrNotificationNotFound
	}
	return n, nil
}

func (a *App) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	n, err := a.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, storeErr("mark all notifications read", err)
	}
	return n, nil
}

func (a *App) DeleteNotification(ctx context.Context, userID, id string) error {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	ok, err := a.store.DeleteNotification(ctx, userID, id)
	if err != nil {
		return storeErr("delete notification", err)
	}
	if !ok {
		return ErrNotificationNotFound
	}
	return nil
}

// CreateNotification stores a notification for userID. An empty type means info.
func (a *App) CreateNotification(ctx context.Context, userID, title, message string, typ domain.NotificationType) (domain.Notification, error) {
	if typ == "" {
		typ = domain.NotificationInfo
	}
	if !typ.Valid() {
		return domain.Notification{}, invalid("type", "Type must be info, success, warning or error")
	}
	if strings.TrimSpace(title) == "" {
		return domain.Notification{}, invalid("title", "Title is required")
	}
	now := a.now().UTC()
	n := domain.Notification{ID: util.NewID(), UserID: userID, Title: strings.TrimSpace(title), Message: message, Type: typ, Timestamp: now, CreatedAt: now}
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	if err := a.store.CreateNotification(ctx, n); err != nil {
		return domain.Notification{}, storeErr("create notification", err)
	}
	return n, nil
}

func (a *App) ListMessages(ctx context.Context, userID string, limit int) ([]domain.Message, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	items, err := a.store.ListMessages(ctx, userID, store.FeedLimit(limit))
	if err != nil {
		return nil, storeErr("list messages", err)
	}
	return items, nil
}

func (a *App) UnreadMessageCount(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	n, err := a.store.UnreadMessageCount(ctx, userID)
	if err != nil {
		return 0, storeErr("count messages", err)
	}
	return n, nil
}

func (a *App) MarkMessageRead(ctx context.Context, userID, id string) (domain.Message, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	m, ok, err := a.store.MarkMessageRead(ctx, userID, id)
	if err != nil {
		return domain.Message{}, storeErr("mark message read", err)
	}
	if !ok {
		return domain.Message{}, ErrMessageNotFound
	}
	return m, nil
}

func (a *App) MarkAllMessagesRead(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	n, err := a.store.MarkAllMessagesRead(ctx, userID)
	if err != nil {
		return 0, storeErr("mark all messages read", err)
	}
	return n, nil
}

func (a *App) DeleteMessage(ctx context.Context, userID, id string) error {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	ok, err := a.store.DeleteMessage(ctx, userID, id)
	if err != nil {
		return storeErr("delete message", err)
	}
	if !ok {
		return ErrMessageNotFound
	}
	return nil
}

// CreateMessage stores a message for userID. An empty type means system.
func (a *App) CreateMessage(ctx context.Context, userID, title, content string, typ domain.MessageType) (domain.Message, error) {
	if typ == "" {
		typ = domain.MessageSystem
	}
	if !typ.Valid() {
		return domain.Message{}, invalid("type", "Type must be system or user")
	}
	if strings.TrimSpace(title) == "" {
		return domain.Message{}, invalid("title", "Title is required")
	}
	now := a.now().UTC()
	m := domain.Message{ID: util.NewID(), UserID: userID, Title: strings.TrimSpace(title), Content: content, Type: typ, Timestamp: now, CreatedAt: now}
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	if err := a.store.CreateMessage(ctx, m); err != nil {
		return domain.Message{}, storeErr("create message", err)
	}
	return m, nil
}
