package store

import (
	"time"

	"gorm.io/datatypes"
	"mailboxapi/pkg/domain"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey;type:uuid"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Name         string `gorm:"not null"`
	Role         string `gorm:"not null;default:user"`
	Avatar       string
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type EmailModel struct {
	ID             string    `gorm:"primaryKey;type:uuid"`
	UserID         string    `gorm:"type:uuid;not null;index"`
	FromAddress    string    `gorm:"not null"`
	ToAddress      string    `gorm:"not null"`
	Subject        string    `gorm:"not null"`
	Body           string    `gorm:"type:text;not null"`
	IsRead         bool      `gorm:"not null;default:false;index"`
	IsStarred      bool      `gorm:"not null;default:false;index"`
	IsImportant    bool      `gorm:"not null;default:false;index"`
	HasAttachments bool      `gorm:"not null;default:false"`
	Timestamp      time.Time `gorm:"not null;index"`
	CreatedAt      time.Time `gorm:"not null;index"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (EmailModel) TableName() string { return "emails" }

type AttachmentModel struct {
	ID       string `gorm:"primaryKey;type:uuid"`
	EmailID  string `gorm:"type:uuid;not null;index"`
	Filename string `gorm:"not null"`
	Size     int64  `gorm:"not null"`
	Type     string `gorm:"not null"`
	URL      string `gorm:"column:url;not null"`
}

func (AttachmentModel) TableName() string { return "attachments" }

type LabelModel struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_email_labels_user_name"`
	Name      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_email_labels_user_name"`
	Color     string    `gorm:"type:varchar(7);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (LabelModel) TableName() string { return "email_labels" }

type LabelMappingModel struct {
	EmailID string `gorm:"primaryKey;type:uuid"`
	LabelID string `gorm:"primaryKey;type:uuid;index"`
}

func (LabelMappingModel) TableName() string { return "email_label_mappings" }

type NotificationModel struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	UserID    string    `gorm:"type:uuid;not null;index"`
	Title     string    `gorm:"not null"`
	Message   string    `gorm:"type:text;not null"`
	Type      string    `gorm:"type:varchar(20);not null;default:info"`
	IsRead    bool      `gorm:"not null;default:false"`
	Timestamp time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (NotificationModel) TableName() string { return "notifications" }

type MessageModel struct {
	ID        string    `gorm:"primaryKey;type:uuid"`
	UserID    string    `gorm:"type:uuid;not null;index"`
	Title     string    `gorm:"not null"`
	Content   string    `gorm:"type:text;not null"`
	Type      string    `gorm:"type:varchar(20);not null;default:system"`
	IsRead    bool      `gorm:"not null;default:false"`
	Timestamp time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func (MessageModel) TableName() string { return "messages" }

type SweepRunModel struct {
	ID             string `gorm:"primaryKey;type:uuid"`
	Trigger        string `gorm:"type:varchar(20);not null"`
	RetentionHours int    `gorm:"not null"`
	Cutoff         time.Time
	StartedAt      time.Time `gorm:"not null;index"`
	FinishedAt     time.Time
	Error          string
	Result         datatypes.JSONType[domain.SweepResult] `gorm:"type:jsonb"`
}

func (SweepRunModel) TableName() string { return "sweep_runs" }
