package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"mailboxapi/pkg/domain"
)

// ErrUnknownSortColumn is returned for a sort key outside the allow-list.
var ErrUnknownSortColumn = errors.New("unknown sort column")

// emailSortColumns maps accepted sortBy keys to qualified columns.
var emailSortColumns = map[string]string{
	"timestamp":    "emails.timestamp",
	"subject":      "emails.subject",
	"from":         "emails.from_address",
	"to":           "emails.to_address",
	"isRead":       "emails.is_read",
	"is_read":      "emails.is_read",
	"isStarred":    "emails.is_starred",
	"is_starred":   "emails.is_starred",
	"isImportant":  "emails.is_important",
	"is_important": "emails.is_important",
	"createdAt":    "emails.created_at",
	"created_at":   "emails.created_at",
	"updatedAt":    "emails.updated_at",
	"updated_at":   "emails.updated_at",
}

// SortColumn resolves a caller-supplied sort key against the allow-list.
func SortColumn(key string) (string, bool) {
	col, ok := emailSortColumns[strings.TrimSpace(key)]
	return col, ok
}

var flagColumns = map[domain.EmailFlag]string{
	domain.FlagRead:      "is_read",
	domain.FlagStarred:   "is_starred",
	domain.FlagImportant: "is_important",
}

func flagColumn(flag domain.EmailFlag) (string, bool) {
	col, ok := flagColumns[flag]
	return col, ok
}

// scopeEmails applies owner scoping and every filter predicate.
func scopeEmails(tx *gorm.DB, userID string, f domain.EmailFilter) *gorm.DB {
	tx = tx.Where("emails.user_id = ?", userID)

	switch f.View {
	case domain.ViewStarred:
		tx = tx.Where("emails.is_starred = ?", true)
	case domain.ViewImportant:
		tx = tx.Where("emails.is_important = ?", true)
	case domain.ViewUnread:
		tx = tx.Where("emails.is_read = ?", false)
	}
	// inbox, sent, drafts and trash have no folder semantics yet.

	if f.IsRead != nil {
		tx = tx.Where("emails.is_read = ?", *f.IsRead)
	}
	if f.IsStarred != nil {
		tx = tx.Where("emails.is_starred = ?", *f.IsStarred)
	}
	if f.IsImportant != nil {
		tx = tx.Where("emails.is_important = ?", *f.IsImportant)
	}
	if f.HasAttachments != nil {
		tx = tx.Where("emails.has_attachments = ?", *f.HasAttachments)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		tx = tx.Where(
			"(emails.subject ILIKE ? OR emails.from_address ILIKE ? OR emails.body ILIKE ?)",
			pattern, pattern, pattern,
		)
	}
	if names := cleanLabelNames(f.Labels); len(names) > 0 {
		tx = tx.Where(
			"emails.id IN (SELECT m.email_id FROM email_label_mappings m JOIN email_labels l ON l.id = m.label_id WHERE l.user_id = ? AND l.name IN ?)",
			userID, names,
		)
	}
	if f.DateFrom != nil {
		tx = tx.Where("emails.timestamp >= ?", f.DateFrom.UTC())
	}
	if f.DateTo != nil {
		if f.DateToExclusive {
			tx = tx.Where("emails.timestamp < ?", f.DateTo.UTC())
		} else {
			tx = tx.Where("emails.timestamp <= ?", f.DateTo.UTC())
		}
	}
	return tx
}

// orderEmails sorts by the allow-listed column with id as a stable tie-break.
func orderEmails(tx *gorm.DB, column string, order domain.SortOrder) *gorm.DB {
	desc := order != domain.SortAsc
	return tx.
		Order(clause.OrderByColumn{Column: clause.Column{Name: column, Raw: true}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "emails.id", Raw: true}, Desc: desc})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func cleanLabelNames(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
