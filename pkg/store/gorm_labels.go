package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"mailboxapi/internal/util"
	"mailboxapi/pkg/domain"
)

// ListLabels returns the user's labels ordered by name.
func (s *GormStore) ListLabels(ctx context.Context, userID string) ([]domain.Label, error) {
	var models []LabelModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC, id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Label, 0, len(models))
	for _, m := range models {
		out = append(out, labelFromModel(m))
	}
	return out, nil
}

// CreateLabel inserts a label. A name the user already owns yields ErrDuplicateLabel.
func (s *GormStore) CreateLabel(ctx context.Context, l domain.Label) error {
	model := labelToModel(l)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateLabel
		}
		return err
	}
	return nil
}

// DeleteLabel removes the label and, through the cascade, its mappings.
func (s *GormStore) DeleteLabel(ctx context.Context, userID, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&LabelModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) AddLabelToEmail(ctx context.Context, userID, emailID, name, color string) (bool, error) {
	found := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned int64
		if err := tx.Model(&EmailModel{}).Where("id = ? AND user_id = ?", emailID, userID).Count(&owned).Error; err != nil {
			return fmt.Errorf("check email owner: %w", err)
		}
		if owned == 0 {
			return nil
		}
		found = true

		label := LabelModel{
			ID:        util.NewID(),
			UserID:    userID,
			Name:      name,
			Color:     color,
			CreatedAt: time.Now().UTC(),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
			DoNothing: true,
		}).Create(&label).Error
		if err != nil {
			return fmt.Errorf("upsert label: %w", err)
		}
		var existing LabelModel
		if err := tx.Where("user_id = ? AND name = ?", userID, name).First(&existing).Error; err != nil {
			return fmt.Errorf("load label: %w", err)
		}

		mapping := LabelMappingModel{EmailID: emailID, LabelID: existing.ID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&mapping).Error; err != nil {
			return fmt.Errorf("link label: %w", err)
		}
		return tx.Model(&EmailModel{}).Where("id = ?", emailID).Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (s *GormStore) RemoveLabelFromEmail(ctx context.Context, userID, emailID, name string) (bool, error) {
	db := s.db.WithContext(ctx)
	var owned int64
	if err := db.Model(&EmailModel{}).Where("id = ? AND user_id = ?", emailID, userID).Count(&owned).Error; err != nil {
		return false, fmt.Errorf("check email owner: %w", err)
	}
	if owned == 0 {
		return false, nil
	}
	var label LabelModel
	if err := db.Where("user_id = ? AND name = ?", userID, name).First(&label).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := db.Where("email_id = ? AND label_id = ?", emailID, label.ID).Delete(&LabelMappingModel{}).Error; err != nil {
		return false, fmt.Errorf("unlink label: %w", err)
	}
	return true, nil
}

func labelToModel(l domain.Label) LabelModel {
	if l.ID == "" {
		l.ID = util.NewID()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	return LabelModel{
		ID:        l.ID,
		UserID:    l.UserID,
		Name:      l.Name,
		Color:     l.Color,
		CreatedAt: l.CreatedAt,
	}
}

func labelFromModel(m LabelModel) domain.Label {
	return domain.Label{
		ID:        m.ID,
		UserID:    m.UserID,
		Name:      m.Name,
		Color:     m.Color,
		CreatedAt: m.CreatedAt,
	}
}
