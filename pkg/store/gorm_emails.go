package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"mailboxapi/internal/util"
	"mailboxapi/pkg/domain"
)

// ListEmails returns one page of the user's emails and the total match count.
func (s *GormStore) ListEmails(ctx context.Context, userID string, filter domain.EmailFilter, page domain.PageRequest) ([]domain.Email, int64, error) {
	page = page.Normalize()
	column, ok := SortColumn(page.SortBy)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownSortColumn, page.SortBy)
	}
	db := s.db.WithContext(ctx)

	var total int64
	if err := scopeEmails(db.Model(&EmailModel{}), userID, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count emails: %w", err)
	}
	if total == 0 || int64(page.Offset()) >= total {
		return []domain.Email{}, total, nil
	}

	var models []EmailModel
	q := orderEmails(scopeEmails(db.Model(&EmailModel{}), userID, filter), column, page.SortOrder)
	if err := q.Limit(page.Limit).Offset(page.Offset()).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("list emails: %w", err)
	}
	emails, err := s.annotate(ctx, models)
	if err != nil {
		return nil, 0, err
	}
	return emails, total, nil
}

// GetEmail returns an email owned by userID with labels and attachments.
func (s *GormStore) GetEmail(ctx context.Context, userID, id string) (domain.Email, bool, error) {
	var model EmailModel
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Email{}, false, nil
		}
		return domain.Email{}, false, err
	}
	emails, err := s.annotate(ctx, []EmailModel{model})
	if err != nil {
		return domain.Email{}, false, err
	}
	return emails[0], true, nil
}

// SetEmailFlag writes a flag to a fixed value.
func (s *GormStore) SetEmailFlag(ctx context.Context, userID, id string, flag domain.EmailFlag, value bool) (domain.Email, bool, error) {
	column, ok := flagColumn(flag)
	if !ok {
		return domain.Email{}, false, fmt.Errorf("unknown email flag %q", flag)
	}
	return s.updateEmail(ctx, userID, id, map[string]any{column: value})
}

// ToggleEmailFlag negates a flag in a single statement.
func (s *GormStore) ToggleEmailFlag(ctx context.Context, userID, id string, flag domain.EmailFlag) (domain.Email, bool, error) {
	column, ok := flagColumn(flag)
	if !ok {
		return domain.Email{}, false, fmt.Errorf("unknown email flag %q", flag)
	}
	return s.updateEmail(ctx, userID, id, map[string]any{column: gorm.Expr("NOT " + column)})
}

func (s *GormStore) updateEmail(ctx context.Context, userID, id string, fields map[string]any) (domain.Email, bool, error) {
	fields["updated_at"] = time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&EmailModel{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return domain.Email{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Email{}, false, nil
	}
	return s.GetEmail(ctx, userID, id)
}

// DeleteEmail removes an email; attachments and mappings cascade.
func (s *GormStore) DeleteEmail(ctx context.Context, userID, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&EmailModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// EmailCounts aggregates every view in one query.
func (s *GormStore) EmailCounts(ctx context.Context, userID string) (domain.EmailCounts, error) {
	var row struct {
		Inbox     int64
		Starred   int64
		Important int64
		Unread    int64
	}
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) AS inbox,
			COUNT(*) FILTER (WHERE is_starred) AS starred,
			COUNT(*) FILTER (WHERE is_important) AS important,
			COUNT(*) FILTER (WHERE NOT is_read) AS unread
		FROM emails
		WHERE user_id = ?
	`, userID).Scan(&row).Error
	if err != nil {
		return domain.EmailCounts{}, fmt.Errorf("count email views: %w", err)
	}
	return domain.EmailCounts{
		Inbox:     row.Inbox,
		Starred:   row.Starred,
		Important: row.Important,
		Unread:    row.Unread,
	}, nil
}

// CreateEmail inserts an email with its attachments in one transaction.
func (s *GormStore) CreateEmail(ctx context.Context, e domain.Email) error {
	model, attachments := emailToModel(e)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("insert email: %w", err)
		}
		if len(attachments) == 0 {
			return nil
		}
		if err := tx.Create(&attachments).Error; err != nil {
			return fmt.Errorf("insert attachments: %w", err)
		}
		return nil
	})
}

// GetAttachment returns an attachment when its email belongs to userID.
func (s *GormStore) GetAttachment(ctx context.Context, userID, emailID, attachmentID string) (domain.Attachment, bool, error) {
	var model AttachmentModel
	err := s.db.WithContext(ctx).
		Model(&AttachmentModel{}).
		Joins("JOIN emails e ON e.id = attachments.email_id").
		Where("attachments.id = ? AND attachments.email_id = ? AND e.user_id = ?", attachmentID, emailID, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Attachment{}, false, nil
		}
		return domain.Attachment{}, false, err
	}
	return attachmentFromModel(model), true, nil
}

// annotate loads label names and attachments for a page of emails.
func (s *GormStore) annotate(ctx context.Context, models []EmailModel) ([]domain.Email, error) {
	if len(models) == 0 {
		return []domain.Email{}, nil
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}

	var (
		labelRows   []emailLabelRow
		attachments []AttachmentModel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.db.WithContext(gctx).
			Table("email_label_mappings AS m").
			Select("m.email_id AS email_id, l.name AS name").
			Joins("JOIN email_labels l ON l.id = m.label_id").
			Where("m.email_id IN ?", ids).
			Order("l.name ASC").
			Scan(&labelRows).Error
		if err != nil {
			return fmt.Errorf("load email labels: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := s.db.WithContext(gctx).
			Where("email_id IN ?", ids).
			Order("filename ASC, id ASC").
			Find(&attachments).Error
		if err != nil {
			return fmt.Errorf("load attachments: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	labelsByEmail := make(map[string][]string, len(models))
	for _, row := range labelRows {
		labelsByEmail[row.EmailID] = append(labelsByEmail[row.EmailID], row.Name)
	}
	attachmentsByEmail := make(map[string][]domain.Attachment, len(models))
	for _, a := range attachments {
		attachmentsByEmail[a.EmailID] = append(attachmentsByEmail[a.EmailID], attachmentFromModel(a))
	}

	out := make([]domain.Email, 0, len(models))
	for _, m := range models {
		e := emailFromModel(m)
		if names := labelsByEmail[m.ID]; len(names) > 0 {
			sort.Strings(names)
			e.Labels = names
		}
		if atts := attachmentsByEmail[m.ID]; len(atts) > 0 {
			e.Attachments = atts
		}
		out = append(out, e)
	}
	return out, nil
}

type emailLabelRow struct {
	EmailID string
	Name    string
}

func emailToModel(e domain.Email) (EmailModel, []AttachmentModel) {
	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = util.NewID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	attachments := make([]AttachmentModel, 0, len(e.Attachments))
	for _, a := range e.Attachments {
		if a.ID == "" {
			a.ID = util.NewID()
		}
		attachments = append(attachments, AttachmentModel{
			ID:       a.ID,
			EmailID:  e.ID,
			Filename: a.Filename,
			Size:     a.Size,
			Type:     a.Type,
			URL:      a.URL,
		})
	}
	return EmailModel{
		ID:             e.ID,
		UserID:         e.UserID,
		FromAddress:    e.From,
		ToAddress:      e.To,
		Subject:        e.Subject,
		Body:           e.Body,
		IsRead:         e.IsRead,
		IsStarred:      e.IsStarred,
		IsImportant:    e.IsImportant,
		HasAttachments: len(attachments) > 0,
		Timestamp:      e.Timestamp.UTC(),
		CreatedAt:      e.CreatedAt.UTC(),
		UpdatedAt:      e.UpdatedAt.UTC(),
	}, attachments
}

func emailFromModel(m EmailModel) domain.Email {
	return domain.Email{
		ID:             m.ID,
		UserID:         m.UserID,
		From:           m.FromAddress,
		To:             m.ToAddress,
		Subject:        m.Subject,
		Body:           m.Body,
		IsRead:         m.IsRead,
		IsStarred:      m.IsStarred,
		IsImportant:    m.IsImportant,
		HasAttachments: m.HasAttachments,
		Attachments:    []domain.Attachment{},
		Labels:         []string{},
		Timestamp:      m.Timestamp,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func attachmentFromModel(m AttachmentModel) domain.Attachment {
	return domain.Attachment{
		ID:       m.ID,
		EmailID:  m.EmailID,
		Filename: m.Filename,
		Size:     m.Size,
		Type:     m.Type,
		URL:      m.URL,
	}
}
