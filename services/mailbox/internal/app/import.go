package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"mailboxapi/internal/util"
	"mailboxapi/pkg/domain"
	"mailboxapi/pkg/storage"
)

// ImportedAttachment carries either a Body to upload or a ready URL and
// Size, which are used as-is when Body is empty.
type ImportedAttachment struct {
	Filename    string
	ContentType string
	Body        []byte
	URL         string
	Size        int64
}

// ImportedEmail is a message handed over by the seeder or the .eml importer.
type ImportedEmail struct {
	From        string
	To          string
	Subject     string
	Body        string
	Timestamp   time.Time
	IsRead      bool
	IsStarred   bool
	IsImportant bool
	Labels      []string
	Attachments []ImportedAttachment
}

// ImportEmail stores an email for userID. Attachment bodies are uploaded to
// the object store when one is configured and referenced by object key.
func (a *App) ImportEmail(ctx context.Context, userID string, in ImportedEmail) (domain.Email, error) {
	now := a.now().UTC()
	email := domain.Email{
		ID:          util.NewID(),
		UserID:      userID,
		From:        in.From,
		To:          in.To,
		Subject:     in.Subject,
		Body:        in.Body,
		IsRead:      in.IsRead,
		IsStarred:   in.IsStarred,
		IsImportant: in.IsImportant,
		Timestamp:   in.Timestamp.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if email.Timestamp.IsZero() {
		email.Timestamp = now
	}

	var uploaded []string
	for _, src := range in.Attachments {
		att := domain.Attachment{
			ID:       util.NewID(),
			EmailID:  email.ID,
			Filename: src.Filename,
			Size:     int64(len(src.Body)),
			Type:     src.ContentType,
			URL:      src.URL,
		}
		if len(src.Body) == 0 {
			att.Size = src.Size
		} else {
			if a.objects != nil {
				key := storage.AttachmentKey(userID, email.ID, att.ID, src.Filename)
				if err := a.objects.Put(ctx, key, bytes.NewReader(src.Body), att.Size, src.ContentType); err != nil {
					a.discardObjects(ctx, uploaded)
					return domain.Email{}, fmt.Errorf("upload attachment: %w", err)
				}
				uploaded = append(uploaded, key)
				att.URL = key
			} else if att.URL == "" {
				att.URL = "/attachments/" + att.ID
			}
		}
		email.Attachments = append(email.Attachments, att)
	}
	email.HasAttachments = len(email.Attachments) > 0

	dbCtx, cancel := a.dbCtx(ctx)
	defer cancel()
	if err := a.store.CreateEmail(dbCtx, email); err != nil {
		a.discardObjects(ctx, uploaded)
		return domain.Email{}, storeErr("create email", err)
	}
	for _, name := range in.Labels {
		if _, err := a.AddLabelToEmail(ctx, userID, email.ID, name); err != nil {
			return domain.Email{}, err
		}
	}
	return a.GetEmail(ctx, userID, email.ID)
}

func (a *App) discardObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := a.objects.Delete(context.WithoutCancel(ctx), key); err != nil {
			slog.Warn("discard uploaded attachment failed", "key", key, "err", err)
		}
	}
}
