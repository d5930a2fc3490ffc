package domain

import (
	"math"
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         UserRole  `json:"role"`
	Avatar       string    `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID string   `json:"userId"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
}

// ProfileUpdate carries the user-editable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Name   *string
	Avatar *string
}

type Profile struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Email               string   `json:"email"`
	Role                UserRole `json:"role"`
	Avatar              string   `json:"avatar,omitempty"`
	UnreadMessages      int64    `json:"unreadMessages"`
	UnreadNotifications int64    `json:"unreadNotifications"`
}

type Email struct {
	ID             string       `json:"id"`
	UserID         string       `json:"userId"`
	From           string       `json:"from"`
	To             string       `json:"to"`
	Subject        string       `json:"subject"`
	Body           string       `json:"body"`
	IsRead         bool         `json:"isRead"`
	IsStarred      bool         `json:"isStarred"`
	IsImportant    bool         `json:"isImportant"`
	HasAttachments bool         `json:"hasAttachments"`
	Attachments    []Attachment `json:"attachments"`
	Labels         []string     `json:"labels"`
	Timestamp      time.Time    `json:"timestamp"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

type Attachment struct {
	ID       string `json:"id"`
	EmailID  string `json:"emailId"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
	URL      string `json:"url"`
}

type Label struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmailFlag names a boolean column that can be set or toggled in place.
type EmailFlag string

const (
	FlagRead      EmailFlag = "isRead"
	FlagStarred   EmailFlag = "isStarred"
	FlagImportant EmailFlag = "isImportant"
)

// EmailView is a named predicate shared by listing and counting.
type EmailView string

const (
	ViewInbox     EmailView = "inbox"
	ViewStarred   EmailView = "starred"
	ViewImportant EmailView = "important"
	ViewUnread    EmailView = "unread"
	ViewSent      EmailView = "sent"
	ViewDrafts    EmailView = "drafts"
	ViewTrash     EmailView = "trash"
)

// Valid reports whether v is a known view. The empty view is valid.
func (v EmailView) Valid() bool {
	switch v {
	case "", ViewInbox, ViewStarred, ViewImportant, ViewUnread, ViewSent, ViewDrafts, ViewTrash:
		return true
	}
	return false
}

// EmailFilter narrows an email listing. All set fields are AND-combined.
type EmailFilter struct {
	View           EmailView
	Labels         []string
	IsRead         *bool
	IsStarred      *bool
	IsImportant    *bool
	HasAttachments *bool
	Search         string
	DateFrom       *time.Time
	// DateTo is inclusive unless DateToExclusive is set.
	DateTo          *time.Time
	DateToExclusive bool
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const (
	DefaultPageLimit = 15
	MaxPageLimit     = 100
)

type PageRequest struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder SortOrder
}

// Normalize fills defaults for zero values.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.SortBy == "" {
		p.SortBy = "timestamp"
	}
	if p.SortOrder != SortAsc {
		p.SortOrder = SortDesc
	}
	return p
}

// Offset is the number of rows skipped before this page. It saturates at
// math.MaxInt rather than wrapping.
func (p PageRequest) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// MaxPage is the largest page whose offset fits in an int for limit.
func MaxPage(limit int) int {
	if limit < 1 {
		limit = 1
	}
	return math.MaxInt / limit
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPagination computes page metadata for a result of total rows.
func NewPagination(p PageRequest, total int64) Pagination {
	totalPages := 0
	if p.Limit > 0 {
		totalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Pagination{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

type EmailCounts struct {
	Inbox     int64 `json:"inbox"`
	Starred   int64 `json:"starred"`
	Important int64 `json:"important"`
	Unread    int64 `json:"unread"`
	Sent      int64 `json:"sent"`
	Drafts    int64 `json:"drafts"`
	Trash     int64 `json:"trash"`
}

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return true
	}
	return false
}

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	IsRead    bool             `json:"isRead"`
	Timestamp time.Time        `json:"timestamp"`
	CreatedAt time.Time        `json:"createdAt"`
}

type MessageType string

const (
	MessageSystem MessageType = "system"
	MessageUser   MessageType = "user"
)

func (t MessageType) Valid() bool {
	return t == MessageSystem || t == MessageUser
}

type Message struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	IsRead    bool        `json:"isRead"`
	Timestamp time.Time   `json:"timestamp"`
	CreatedAt time.Time   `json:"createdAt"`
}

// SweepResult counts rows removed by one retention sweep.
type SweepResult struct {
	DeletedEmails              int64 `json:"deletedEmails"`
	DeletedNotifications       int64 `json:"deletedNotifications"`
	DeletedMessages            int64 `json:"deletedMessages"`
	DeletedOrphanedAttachments int64 `json:"deletedOrphanedAttachments"`
	DeletedOrphanedMappings    int64 `json:"deletedOrphanedMappings"`
}

// Total is the number of rows removed across all tables.
func (r SweepResult) Total() int64 {
	return r.DeletedEmails + r.DeletedNotifications + r.DeletedMessages +
		r.DeletedOrphanedAttachments + r.DeletedOrphanedMappings
}

type SweepTrigger string

const (
	TriggerSchedule SweepTrigger = "schedule"
	TriggerStartup  SweepTrigger = "startup"
	TriggerManual   SweepTrigger = "manual"
	TriggerQueue    SweepTrigger = "queue"
)

type SweepRun struct {
	ID             string       `json:"id"`
	Trigger        SweepTrigger `json:"trigger"`
	RetentionHours int          `json:"retentionHours"`
	Cutoff         time.Time    `json:"cutoff"`
	StartedAt      time.Time    `json:"startedAt"`
	FinishedAt     time.Time    `json:"finishedAt"`
	Error          string       `json:"error,omitempty"`
	Result         SweepResult  `json:"result"`
}

type NavigationItem struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Icon       string           `json:"icon"`
	Path       string           `json:"path,omitempty"`
	IsExpanded *bool            `json:"isExpanded,omitempty"`
	Children   []NavigationItem `json:"children,omitempty"`
}

type UpgradeInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ButtonText  string `json:"buttonText"`
	ButtonIcon  string `json:"buttonIcon"`
}
