package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"mailboxapi/internal/util"
	"mailboxapi/pkg/domain"
)

const (
	DefaultFeedLimit = 10
	MaxFeedLimit     = 100
)

// FeedLimit clamps a caller-supplied list limit.
func FeedLimit(limit int) int {
	if limit < 1 {
		return DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		return MaxFeedLimit
	}
	return limit
}

func (s *GormStore) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	var models []NotificationModel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC").
		Limit(FeedLimit(limit)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(models))
	for _, m := range models {
		out = append(out, notificationFromModel(m))
	}
	return out, nil
}

func (s *GormStore) UnreadNotificationCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

func (s *GormStore) MarkNotificationRead(ctx context.Context, userID, id string) (domain.Notification, bool, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&NotificationModel{}).Where("id = ? AND user_id = ?", id, userID).Update("is_read", true)
	if res.Error != nil {
		return domain.Notification{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Notification{}, false, nil
	}
	var model NotificationModel
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Notification{}, false, nil
		}
		return domain.Notification{}, false, err
	}
	return notificationFromModel(model), true, nil
}

func (s *GormStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (s *GormStore) DeleteNotification(ctx context.Context, userID, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&NotificationModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) CreateNotification(ctx context.Context, n domain.Notification) error {
	model := notificationToModel(n)
	return s.db.WithContext(ctx).Create(&model).Error
}

func (s *GormStore) ListMessages(ctx context.Context, userID string, limit int) ([]domain.Message, error) {
	var models []MessageModel
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC").
		Limit(FeedLimit(limit)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Message, 0, len(models))
	for _, m := range models {
		out = append(out, messageFromModel(m))
	}
	return out, nil
}

func (s *GormStore) UnreadMessageCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&MessageModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

func (s *GormStore) MarkMessageRead(ctx context.Context, userID, id string) (domain.Message, bool, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&MessageModel{}).Where("id = ? AND user_id = ?", id, userID).Update("is_read", true)
	if res.Error != nil {
		return domain.Message{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Message{}, false, nil
	}
	var model MessageModel
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Message{}, false, nil
		}
		return domain.Message{}, false, err
	}
	return messageFromModel(model), true, nil
}

func (s *GormStore) MarkAllMessagesRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&MessageModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (s *GormStore) DeleteMessage(ctx context.Context, userID, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&MessageModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) CreateMessage(ctx context.Context, m domain.Message) error {
	model := messageToModel(m)
	return s.db.WithContext(ctx).Create(&model).Error
}

func notificationToModel(n domain.Notification) NotificationModel {
	now := time.Now().UTC()
	if n.ID == "" {
		n.ID = util.NewID()
	}
	if n.Type == "" {
		n.Type = domain.NotificationInfo
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = now
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	return NotificationModel{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      string(n.Type),
		IsRead:    n.IsRead,
		Timestamp: n.Timestamp.UTC(),
		CreatedAt: n.CreatedAt.UTC(),
	}
}

func notificationFromModel(m NotificationModel) domain.Notification {
	return domain.Notification{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		Message:   m.Message,
		Type:      domain.NotificationType(m.Type),
		IsRead:    m.IsRead,
		Timestamp: m.Timestamp,
		CreatedAt: m.CreatedAt,
	}
}

func messageToModel(m domain.Message) MessageModel {
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = util.NewID()
	}
	if m.Type == "" {
		m.Type = domain.MessageSystem
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	return MessageModel{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		Content:   m.Content,
		Type:      string(m.Type),
		IsRead:    m.IsRead,
		Timestamp: m.Timestamp.UTC(),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		Content:   m.Content,
		Type:      domain.MessageType(m.Type),
		IsRead:    m.IsRead,
		Timestamp: m.Timestamp,
		CreatedAt: m.CreatedAt,
	}
}
