package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mailboxapi/pkg/domain"
	"mailboxapi/pkg/storage"
	"mailboxapi/pkg/store"
)

const dateOnlyLayout = "2006-01-02"

// EmailQuery holds the raw listing parameters from the query string.
type EmailQuery struct {
	Page           string
	Limit          string
	SortBy         string
	SortOrder      string
	View           string
	Labels         string
	IsRead         string
	IsStarred      string
	IsImportant    string
	HasAttachments string
	Search         string
	DateFrom       string
	DateTo         string
}

// Parse validates q and converts it into a store filter and page.
func (q EmailQuery) Parse() (domain.EmailFilter, domain.PageRequest, error) {
	var (
		filter domain.EmailFilter
		page   domain.PageRequest
		err    error
	)
	if page.Page, err = optionalInt(q.Page, 1); err != nil || page.Page < 1 {
		return filter, page, invalid("page", "Page must be a positive integer")
	}
	if page.Limit, err = optionalInt(q.Limit, domain.DefaultPageLimit); err != nil || page.Limit < 1 || page.Limit > domain.MaxPageLimit {
		return filter, page, invalid("limit", fmt.Sprintf("Limit must be between 1 and %d", domain.MaxPageLimit))
	}
	if page.Page > domain.MaxPage(page.Limit) {
		return filter, page, invalid("page", fmt.Sprintf("Page must not exceed %d", domain.MaxPage(page.Limit)))
	}
	if sortBy := strings.TrimSpace(q.SortBy); sortBy != "" {
		if _, ok := store.SortColumn(sortBy); !ok {
			return filter, page, invalid("sortBy", fmt.Sprintf("Invalid sortBy %q", sortBy))
		}
		page.SortBy = sortBy
	}
	switch strings.ToLower(strings.TrimSpace(q.SortOrder)) {
	case "", string(domain.SortDesc):
		page.SortOrder = domain.SortDesc
	case string(domain.SortAsc):
		page.SortOrder = domain.SortAsc
	default:
		return filter, page, invalid("sortOrder", "sortOrder must be asc or desc")
	}

	filter.View = domain.EmailView(strings.ToLower(strings.TrimSpace(q.View)))
	if !filter.View.Valid() {
		return filter, page, invalid("view", "Invalid folder")
	}
	if q.Labels != "" {
		for _, name := range strings.Split(q.Labels, ",") {
			if name = strings.TrimSpace(name); name != "" {
				filter.Labels = append(filter.Labels, name)
			}
		}
	}
	flags := []struct {
		name string
		raw  string
		dst  **bool
	}{
		{"isRead", q.IsRead, &filter.IsRead},
		{"isStarred", q.IsStarred, &filter.IsStarred},
		{"isImportant", q.IsImportant, &filter.IsImportant},
		{"hasAttachments", q.HasAttachments, &filter.HasAttachments},
	}
	for _, f := range flags {
		v, err := optionalBool(f.raw)
		if err != nil {
			return filter, page, invalid(f.name, f.name+" must be a boolean")
		}
		*f.dst = v
	}
	filter.Search = strings.TrimSpace(q.Search)

	from, _, err := parseDate(q.DateFrom)
	if err != nil {
		return filter, page, invalid("dateFrom", "dateFrom must be RFC 3339 or YYYY-MM-DD")
	}
	filter.DateFrom = from
	to, dateOnly, err := parseDate(q.DateTo)
	if err != nil {
		return filter, page, invalid("dateTo", "dateTo must be RFC 3339 or YYYY-MM-DD")
	}
	if to != nil && dateOnly {
		// A bare date covers the whole day.
		next := to.AddDate(0, 0, 1)
		to = &next
		filter.DateToExclusive = true
	}
	if from != nil && to != nil {
		if (filter.DateToExclusive && !from.Before(*to)) || from.After(*to) {
			return filter, page, invalid("dateFrom", "dateFrom must not be after dateTo")
		}
	}
	filter.DateTo = to
	return filter, page, nil
}

// ListEmails returns one page of the caller's emails and its pagination.
func (a *App) ListEmails(ctx context.Context, userID string, q EmailQuery) ([]domain.Email, domain.Pagination, error) {
	filter, page, err := q.Parse()
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	page = page.Normalize()
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	emails, total, err := a.store.ListEmails(ctx, userID, filter, page)
	if err != nil {
		if errors.Is(err, store.ErrUnknownSortColumn) {
			return nil, domain.Pagination{}, invalid("sortBy", err.Error())
		}
		return nil, domain.Pagination{}, storeErr("list emails", err)
	}
	return emails, domain.NewPagination(page, total), nil
}

func (a *App) GetEmail(ctx context.Context, userID, id string) (domain.Email, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	email, ok, err := a.store.GetEmail(ctx, userID, id)
	if err != nil {
		return domain.Email{}, storeErr("get email", err)
	}
	if !ok {
		return domain.Email{}, ErrEmailNotFound
	}
	return email, nil
}

func (a *App) MarkEmailRead(ctx context.Context, userID, id string) (domain.Email, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	email, ok, err := a.store.SetEmailFlag(ctx, userID, id, domain.FlagRead, true)
	return emailResult("mark email read", email, ok, err)
}

func (a *App) ToggleStar(ctx context.Context, userID, id string) (domain.Email, error) {
	return a.toggle(ctx, userID, id, domain.FlagStarred)
}

func (a *App) ToggleImportant(ctx context.Context, userID, id string) (domain.Email, error) {
	return a.toggle(ctx, userID, id, domain.FlagImportant)
}

func (a *App) toggle(ctx context.Context, userID, id string, flag domain.EmailFlag) (domain.Email, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	email, ok, err := a.store.ToggleEmailFlag(ctx, userID, id, flag)
	return emailResult("toggle "+string(flag), email, ok, err)
}

func (a *App) DeleteEmail(ctx context.Context, userID, id string) error {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	ok, err := a.store.DeleteEmail(ctx, userID, id)
	if err != nil {
		return storeErr("delete email", err)
	}
	if !ok {
		return ErrEmailNotFound
	}
	return nil
}

func (a *App) EmailCounts(ctx context.Context, userID string) (domain.EmailCounts, error) {
	ctx, cancel := a.dbCtx(ctx)
	defer cancel()
	counts, err := a.store.EmailCounts(ctx, userID)
	if err != nil {
		return domain.EmailCounts{}, storeErr("count emails", err)
	}
	return counts, nil
}

// AttachmentURL returns a download URL for an attachment. Stored object keys
// are presigned when an object store is configured.
func (a *App) AttachmentURL(ctx context.Context, userID, emailID, attachmentID string) (string, error) {
	dbCtx, cancel := a.dbCtx(ctx)
	defer cancel()
	att, ok, err := a.store.GetAttachment(dbCtx, userID, emailID, attachmentID)
	if err != nil {
		return "", storeErr("get attachment", err)
	}
	if !ok {
		return "", ErrAttachmentNotFound
	}
	if a.objects == nil || !storage.IsObjectKey(att.URL) {
		return att.URL, nil
	}
	u, err := a.objects.PresignGet(ctx, att.URL, a.attachmentURLExpiry)
	if err != nil {
		return "", fmt.Errorf("presign attachment: %w", err)
	}
	return u, nil
}

func emailResult(op string, email domain.Email, ok bool, err error) (domain.Email, error) {
	if err != nil {
		return domain.Email{}, storeErr(op, err)
	}
	if !ok {
		return domain.Email{}, ErrEmailNotFound
	}
	return email, nil
}

func optionalInt(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func optionalBool(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// parseDate accepts RFC 3339 timestamps and bare dates. dateOnly reports
// which form matched.
func parseDate(raw string) (t *time.Time, dateOnly bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false, nil
	}
	if v, err := time.Parse(time.RFC3339, raw); err == nil {
		v = v.UTC()
		return &v, false, nil
	}
	v, err := time.Parse(dateOnlyLayout, raw)
	if err != nil {
		return nil, false, err
	}
	return &v, true, nil
}
