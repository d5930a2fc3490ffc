package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"mailboxapi/internal/util"
	"mailboxapi/pkg/domain"
)

// Sweep removes rows created before cutoff. Each step is its own statement so
// a partial run leaves state that the next run finishes.
func (s *GormStore) Sweep(ctx context.Context, cutoff time.Time) (domain.SweepResult, error) {
	var result domain.SweepResult
	db := s.db.WithContext(ctx)
	cutoff = cutoff.UTC()

	res := db.Where("created_at < ?", cutoff).Delete(&EmailModel{})
	if res.Error != nil {
		return result, fmt.Errorf("sweep emails: %w", res.Error)
	}
	result.DeletedEmails = res.RowsAffected

	res = db.Where("created_at < ?", cutoff).Delete(&NotificationModel{})
	if res.Error != nil {
		return result, fmt.Errorf("sweep notifications: %w", res.Error)
	}
	result.DeletedNotifications = res.RowsAffected

	res = db.Where("created_at < ?", cutoff).Delete(&MessageModel{})
	if res.Error != nil {
		return result, fmt.Errorf("sweep messages: %w", res.Error)
	}
	result.DeletedMessages = res.RowsAffected

	res = db.Exec(`DELETE FROM attachments a WHERE NOT EXISTS (SELECT 1 FROM emails e WHERE e.id = a.email_id)`)
	if res.Error != nil {
		return result, fmt.Errorf("sweep orphaned attachments: %w", res.Error)
	}
	result.DeletedOrphanedAttachments = res.RowsAffected

	res = db.Exec(`
		DELETE FROM email_label_mappings m
		WHERE NOT EXISTS (SELECT 1 FROM emails e WHERE e.id = m.email_id)
		   OR NOT EXISTS (SELECT 1 FROM email_labels l WHERE l.id = m.label_id)
	`)
	if res.Error != nil {
		return result, fmt.Errorf("sweep orphaned label mappings: %w", res.Error)
	}
	result.DeletedOrphanedMappings = res.RowsAffected

	return result, nil
}

// SaveSweepRun records the outcome of one sweep.
func (s *GormStore) SaveSweepRun(ctx context.Context, run domain.SweepRun) error {
	if run.ID == "" {
		run.ID = util.NewID()
	}
	model := SweepRunModel{
		ID:             run.ID,
		Trigger:        string(run.Trigger),
		RetentionHours: run.RetentionHours,
		Cutoff:         run.Cutoff.UTC(),
		StartedAt:      run.StartedAt.UTC(),
		FinishedAt:     run.FinishedAt.UTC(),
		Error:          run.Error,
		Result:         datatypes.NewJSONType(run.Result),
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// ListSweepRuns returns the most recent runs first.
func (s *GormStore) ListSweepRuns(ctx context.Context, limit int) ([]domain.SweepRun, error) {
	var models []SweepRunModel
	err := s.db.WithContext(ctx).
		Order("started_at DESC, id DESC").
		Limit(FeedLimit(limit)).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.SweepRun, 0, len(models))
	for _, m := range models {
		out = append(out, domain.SweepRun{
			ID:             m.ID,
			Trigger:        domain.SweepTrigger(m.Trigger),
			RetentionHours: m.RetentionHours,
			Cutoff:         m.Cutoff,
			StartedAt:      m.StartedAt,
			FinishedAt:     m.FinishedAt,
			Error:          m.Error,
			Result:         m.Result.Data(),
		})
	}
	return out, nil
}
