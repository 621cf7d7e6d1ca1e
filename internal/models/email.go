package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/utils"
)

// Email is one staged inbound or outbound message. MessageID is the natural
// key from the mail source and the dedup anchor for the whole pipeline.
type Email struct {
	ID        string       `gorm:"column:id;type:varchar(50);primaryKey"`
	MessageID string       `gorm:"column:message_id;uniqueIndex;type:varchar(255);not null"`
	Mailbox   string       `gorm:"column:mailbox;type:varchar(255);index;not null"`
	Folder    string       `gorm:"column:folder;type:varchar(100);index;not null"`
	Doctype   enum.Doctype `gorm:"column:doctype;type:varchar(50);index;not null"`

	// Core email metadata
	Subject     string         `gorm:"column:subject;type:varchar(1000)"`
	Sender      string         `gorm:"column:sender;type:varchar(255);index"`
	SenderName  string         `gorm:"column:sender_name;type:varchar(255)"`
	Recipient   string         `gorm:"column:recipient;type:varchar(255);index"`
	CcAddresses pq.StringArray `gorm:"column:cc_addresses;type:text[]"`
	EmailDate   *time.Time     `gorm:"column:email_date;type:timestamp;index"`

	// Content
	BodyPlain      string `gorm:"column:body_plain;type:text"`
	BodyHTML       string `gorm:"column:body_html;type:text"`
	HasAttachments bool   `gorm:"column:has_attachments;default:false"`

	// Processing state
	Processed          bool                     `gorm:"column:processed;index;default:false"`
	ProcessedAt        *time.Time               `gorm:"column:processed_at;type:timestamp"`
	Classification     enum.EmailClassification `gorm:"column:classification;type:varchar(50);index"`
	ClassificationData JSONMap                  `gorm:"column:classification_data;type:jsonb"`
	ErrorMessage       string                   `gorm:"column:error_message;type:text"`
	RetryCount         int                      `gorm:"column:retry_count;default:0"`
	LastRetryAt        *time.Time               `gorm:"column:last_retry_at;type:timestamp"`

	// Standard timestamps
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Email) TableName() string {
	return "emails"
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("email", 24)
	}
	e.CreatedAt = utils.Now()
	return nil
}
