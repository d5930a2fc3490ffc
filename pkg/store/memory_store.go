package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"mailboxapi/internal/util"
	"mailboxapi/pkg/domain"
)

// MemoryStore keeps mailbox data in-process. It backs tests and the
// memory:// development mode and follows the same semantics as GormStore.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]domain.User // key: user ID
	emailIndex    map[string]string      // email -> user ID
	emails        map[string]domain.Email
	attachments   map[string]domain.Attachment
	labels        map[string]domain.Label
	mappings      map[mappingKey]struct{}
	notifications map[string]domain.Notification
	messages      map[string]domain.Message
	runs          []domain.SweepRun
	now           func() time.Time
}

type mappingKey struct {
	emailID string
	labelID string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]domain.User),
		emailIndex:    make(map[string]string),
		emails:        make(map[string]domain.Email),
		attachments:   make(map[string]domain.Attachment),
		labels:        make(map[string]domain.Label),
		mappings:      make(map[mappingKey]struct{}),
		notifications: make(map[string]domain.Notification),
		messages:      make(map[string]domain.Message),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) CreateUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.emailIndex[u.Email]; exists {
		return ErrDuplicateEmail
	}
	if u.ID == "" {
		u.ID = util.NewID()
	}
	now := m.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	m.users[u.ID] = u
	m.emailIndex[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emailIndex[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) UpdateUserProfile(_ context.Context, id string, update domain.ProfileUpdate) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, false, nil
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Avatar != nil {
		u.Avatar = *update.Avatar
	}
	u.UpdatedAt = m.now()
	m.users[id] = u
	return u, true, nil
}

func (m *MemoryStore) UpdateUserPassword(_ context.Context, id, passwordHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = m.now()
	m.users[id] = u
	return true, nil
}

// ListEmails filters, sorts and pages the user's emails.
func (m *MemoryStore) ListEmails(_ context.Context, userID string, filter domain.EmailFilter, page domain.PageRequest) ([]domain.Email, int64, error) {
	page = page.Normalize()
	key := strings.TrimSpace(page.SortBy)
	if _, ok := SortColumn(key); !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnknownSortColumn, page.SortBy)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	labelIDs := m.labelIDsLocked(userID, cleanLabelNames(filter.Labels))
	matched := make([]domain.Email, 0)
	for _, e := range m.emails {
		if e.UserID != userID || !m.matchLocked(e, filter, labelIDs) {
			continue
		}
		matched = append(matched, e)
	}

	less := emailComparator(key)
	slices.SortFunc(matched, func(a, b domain.Email) int {
		c := less(a, b)
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if page.SortOrder == domain.SortDesc {
			return -c
		}
		return c
	})

	total := int64(len(matched))
	start := page.Offset()
	if start >= len(matched) {
		return []domain.Email{}, total, nil
	}
	end := min(start+page.Limit, len(matched))
	out := make([]domain.Email, 0, end-start)
	for _, e := range matched[start:end] {
		out = append(out, m.annotateLocked(e))
	}
	return out, total, nil
}

func (m *MemoryStore) labelIDsLocked(userID string, names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	ids := make(map[string]struct{})
	for _, l := range m.labels {
		if l.UserID == userID && slices.Contains(names, l.Name) {
			ids[l.ID] = struct{}{}
		}
	}
	return ids
}

func (m *MemoryStore) matchLocked(e domain.Email, f domain.EmailFilter, labelIDs map[string]struct{}) bool {
	switch f.View {
	case domain.ViewStarred:
		if !e.IsStarred {
			return false
		}
	case domain.ViewImportant:
		if !e.IsImportant {
			return false
		}
	case domain.ViewUnread:
		if e.IsRead {
			return false
		}
	}
	if f.IsRead != nil && e.IsRead != *f.IsRead {
		return false
	}
	if f.IsStarred != nil && e.IsStarred != *f.IsStarred {
		return false
	}
	if f.IsImportant != nil && e.IsImportant != *f.IsImportant {
		return false
	}
	if f.HasAttachments != nil && e.HasAttachments != *f.HasAttachments {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		if !strings.Contains(strings.ToLower(e.Subject), term) &&
			!strings.Contains(strings.ToLower(e.From), term) &&
			!strings.Contains(strings.ToLower(e.Body), term) {
			return false
		}
	}
	if labelIDs != nil {
		hit := false
		for id := range labelIDs {
			if _, ok := m.mappings[mappingKey{emailID: e.ID, labelID: id}]; ok {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if f.DateFrom != nil && e.Timestamp.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil {
		if f.DateToExclusive && !e.Timestamp.Before(*f.DateTo) {
			return false
		}
		if !f.DateToExclusive && e.Timestamp.After(*f.DateTo) {
			return false
		}
	}
	return true
}

func emailComparator(key string) func(a, b domain.Email) int {
	col, _ := SortColumn(key)
	switch col {
	case "emails.subject":
		return func(a, b domain.Email) int { return strings.Compare(a.Subject, b.Subject) }
	case "emails.from_address":
		return func(a, b domain.Email) int { return strings.Compare(a.From, b.From) }
	case "emails.to_address":
		return func(a, b domain.Email) int { return strings.Compare(a.To, b.To) }
	case "emails.is_read":
		return func(a, b domain.Email) int { return compareBool(a.IsRead, b.IsRead) }
	case "emails.is_starred":
		return func(a, b domain.Email) int { return compareBool(a.IsStarred, b.IsStarred) }
	case "emails.is_important":
		return func(a, b domain.Email) int { return compareBool(a.IsImportant, b.IsImportant) }
	case "emails.created_at":
		return func(a, b domain.Email) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case "emails.updated_at":
		return func(a, b domain.Email) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	default:
		return func(a, b domain.Email) int { return a.Timestamp.Compare(b.Timestamp) }
	}
}

func compareBool(a, b bool) int {
	toInt := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	return cmp.Compare(toInt(a), toInt(b))
}

func (m *MemoryStore) annotateLocked(e domain.Email) domain.Email {
	e.Labels = []string{}
	for key := range m.mappings {
		if key.emailID != e.ID {
			continue
		}
		if l, ok := m.labels[key.labelID]; ok {
			e.Labels = append(e.Labels, l.Name)
		}
	}
	sort.Strings(e.Labels)
	e.Attachments = []domain.Attachment{}
	for _, a := range m.attachments {
		if a.EmailID == e.ID {
			e.Attachments = append(e.Attachments, a)
		}
	}
	slices.SortFunc(e.Attachments, func(a, b domain.Attachment) int {
		if c := strings.Compare(a.Filename, b.Filename); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return e
}

func (m *MemoryStore) GetEmail(_ context.Context, userID, id string) (domain.Email, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.emails[id]
	if !ok || e.UserID != userID {
		return domain.Email{}, false, nil
	}
	return m.annotateLocked(e), true, nil
}

func (m *MemoryStore) SetEmailFlag(_ context.Context, userID, id string, flag domain.EmailFlag, value bool) (domain.Email, bool, error) {
	return m.updateEmail(userID, id, flag, func(bool) bool { return value })
}

func (m *MemoryStore) ToggleEmailFlag(_ context.Context, userID, id string, flag domain.EmailFlag) (domain.Email, bool, error) {
	return m.updateEmail(userID, id, flag, func(cur bool) bool { return !cur })
}

func (m *MemoryStore) updateEmail(userID, id string, flag domain.EmailFlag, next func(bool) bool) (domain.Email, bool, error) {
	if _, ok := flagColumn(flag); !ok {
		return domain.Email{}, false, fmt.Errorf("unknown email flag %q", flag)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok || e.UserID != userID {
		return domain.Email{}, false, nil
	}
	switch flag {
	case domain.FlagRead:
		e.IsRead = next(e.IsRead)
	case domain.FlagStarred:
		e.IsStarred = next(e.IsStarred)
	case domain.FlagImportant:
		e.IsImportant = next(e.IsImportant)
	}
	e.UpdatedAt = m.now()
	m.emails[id] = e
	return m.annotateLocked(e), true, nil
}

func (m *MemoryStore) DeleteEmail(_ context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok || e.UserID != userID {
		return false, nil
	}
	m.deleteEmailLocked(id)
	return true, nil
}

func (m *MemoryStore) deleteEmailLocked(id string) {
	delete(m.emails, id)
	for aid, a := range m.attachments {
		if a.EmailID == id {
			delete(m.attachments, aid)
		}
	}
	for key := range m.mappings {
		if key.emailID == id {
			delete(m.mappings, key)
		}
	}
}

func (m *MemoryStore) EmailCounts(_ context.Context, userID string) (domain.EmailCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var c domain.EmailCounts
	for _, e := range m.emails {
		if e.UserID != userID {
			continue
		}
		c.Inbox++
		if e.IsStarred {
			c.Starred++
		}
		if e.IsImportant {
			c.Important++
		}
		if !e.IsRead {
			c.Unread++
		}
	}
	return c, nil
}

func (m *MemoryStore) CreateEmail(_ context.Context, e domain.Email) error {
	model, attachments := emailToModel(e)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.emails[model.ID]; exists {
		return fmt.Errorf("insert email: duplicate id %s", model.ID)
	}
	stored := emailFromModel(model)
	stored.Attachments = nil
	stored.Labels = nil
	m.emails[model.ID] = stored
	for _, a := range attachments {
		m.attachments[a.ID] = attachmentFromModel(a)
	}
	return nil
}

func (m *MemoryStore) GetAttachment(_ context.Context, userID, emailID, attachmentID string) (domain.Attachment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.emails[emailID]
	if !ok || e.UserID != userID {
		return domain.Attachment{}, false, nil
	}
	a, ok := m.attachments[attachmentID]
	if !ok || a.EmailID != emailID {
		return domain.Attachment{}, false, nil
	}
	return a, true, nil
}

func (m *MemoryStore) ListLabels(_ context.Context, userID string) ([]domain.Label, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Label, 0)
	for _, l := range m.labels {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b domain.Label) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *MemoryStore) CreateLabel(_ context.Context, l domain.Label) error {
	model := labelToModel(l)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.findLabelLocked(model.UserID, model.Name); ok {
		return ErrDuplicateLabel
	}
	m.labels[model.ID] = labelFromModel(model)
	return nil
}

func (m *MemoryStore) findLabelLocked(userID, name string) (domain.Label, bool) {
	for _, l := range m.labels {
		if l.UserID == userID && l.Name == name {
			return l, true
		}
	}
	return domain.Label{}, false
}

func (m *MemoryStore) DeleteLabel(_ context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.labels[id]
	if !ok || l.UserID != userID {
		return false, nil
	}
	delete(m.labels, id)
	for key := range m.mappings {
		if key.labelID == id {
			delete(m.mappings, key)
		}
	}
	return true, nil
}

func (m *MemoryStore) AddLabelToEmail(_ context.Context, userID, emailID, name, color string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[emailID]
	if !ok || e.UserID != userID {
		return false, nil
	}
	label, ok := m.findLabelLocked(userID, name)
	if !ok {
		label = labelFromModel(labelToModel(domain.Label{UserID: userID, Name: name, Color: color}))
		m.labels[label.ID] = label
	}
	m.mappings[mappingKey{emailID: emailID, labelID: label.ID}] = struct{}{}
	e.UpdatedAt = m.now()
	m.emails[emailID] = e
	return true, nil
}

func (m *MemoryStore) RemoveLabelFromEmail(_ context.Context, userID, emailID, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[emailID]
	if !ok || e.UserID != userID {
		return false, nil
	}
	label, ok := m.findLabelLocked(userID, name)
	if !ok {
		return false, nil
	}
	delete(m.mappings, mappingKey{emailID: emailID, labelID: label.ID})
	return true, nil
}

func (m *MemoryStore) ListNotifications(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Notification, 0)
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b domain.Notification) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if limit = FeedLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UnreadNotificationCount(_ context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, item := range m.notifications {
		if item.UserID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) MarkNotificationRead(_ context.Context, userID, id string) (domain.Notification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return domain.Notification{}, false, nil
	}
	n.IsRead = true
	m.notifications[id] = n
	return n, true, nil
}

func (m *MemoryStore) MarkAllNotificationsRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	for id, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			m.notifications[id] = n
			changed++
		}
	}
	return changed, nil
}

func (m *MemoryStore) DeleteNotification(_ context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	delete(m.notifications, id)
	return true, nil
}

func (m *MemoryStore) CreateNotification(_ context.Context, n domain.Notification) error {
	stored := notificationFromModel(notificationToModel(n))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[stored.ID] = stored
	return nil
}

func (m *MemoryStore) ListMessages(_ context.Context, userID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Message, 0)
	for _, msg := range m.messages {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	slices.SortFunc(out, func(a, b domain.Message) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if limit = FeedLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UnreadMessageCount(_ context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, msg := range m.messages {
		if msg.UserID == userID && !msg.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) MarkMessageRead(_ context.Context, userID, id string) (domain.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.UserID != userID {
		return domain.Message{}, false, nil
	}
	msg.IsRead = true
	m.messages[id] = msg
	return msg, true, nil
}

func (m *MemoryStore) MarkAllMessagesRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	for id, msg := range m.messages {
		if msg.UserID == userID && !msg.IsRead {
			msg.IsRead = true
			m.messages[id] = msg
			changed++
		}
	}
	return changed, nil
}

func (m *MemoryStore) DeleteMessage(_ context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.UserID != userID {
		return false, nil
	}
	delete(m.messages, id)
	return true, nil
}

func (m *MemoryStore) CreateMessage(_ context.Context, msg domain.Message) error {
	stored := messageFromModel(messageToModel(msg))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[stored.ID] = stored
	return nil
}

// Sweep mirrors GormStore.Sweep step by step.
func (m *MemoryStore) Sweep(ctx context.Context, cutoff time.Time) (domain.SweepResult, error) {
	var result domain.SweepResult
	if err := ctx.Err(); err != nil {
		return result, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.emails {
		if e.CreatedAt.Before(cutoff) {
			m.deleteEmailLocked(id)
			result.DeletedEmails++
		}
	}
	for id, n := range m.notifications {
		if n.CreatedAt.Before(cutoff) {
			delete(m.notifications, id)
			result.DeletedNotifications++
		}
	}
	for id, msg := range m.messages {
		if msg.CreatedAt.Before(cutoff) {
			delete(m.messages, id)
			result.DeletedMessages++
		}
	}
	for id, a := range m.attachments {
		if _, ok := m.emails[a.EmailID]; !ok {
			delete(m.attachments, id)
			result.DeletedOrphanedAttachments++
		}
	}
	for key := range m.mappings {
		_, emailOK := m.emails[key.emailID]
		_, labelOK := m.labels[key.labelID]
		if !emailOK || !labelOK {
			delete(m.mappings, key)
			result.DeletedOrphanedMappings++
		}
	}
	return result, nil
}

func (m *MemoryStore) SaveSweepRun(_ context.Context, run domain.SweepRun) error {
	if run.ID == "" {
		run.ID = util.NewID()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *MemoryStore) ListSweepRuns(_ context.Context, limit int) ([]domain.SweepRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.runs)
	slices.SortStableFunc(out, func(a, b domain.SweepRun) int { return b.StartedAt.Compare(a.StartedAt) })
	if limit = FeedLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
