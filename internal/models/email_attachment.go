package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/craftworks/mailtriage/internal/utils"
)

// EmailAttachment belongs to exactly one staged email. Rows are created
// during ingestion and never mutated afterwards, except for the storage URL
// set once the payload lands in blob storage.
type EmailAttachment struct {
	ID          string `gorm:"column:id;type:varchar(50);primaryKey"`
	EmailID     string `gorm:"column:email_id;type:varchar(50);index;not null"`
	Filename    string `gorm:"column:filename;type:varchar(500)"`
	ContentType string `gorm:"column:content_type;type:varchar(255)"`
	SizeBytes   int    `gorm:"column:size_bytes;default:0"`

	// Present once uploaded to blob storage
	StorageURL string `gorm:"column:storage_url;type:varchar(1000)"`
	StorageKey string `gorm:"column:storage_key;type:varchar(1000)"`

	// SHA-256 of the payload
	ContentHash string `gorm:"column:content_hash;type:varchar(64);index"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (EmailAttachment) TableName() string {
	return "email_attachments"
}

func (a *EmailAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("file", 12)
	}
	a.CreatedAt = utils.Now()
	return nil
}

// IsPDF reports whether the attachment looks like a PDF document.
func (a *EmailAttachment) IsPDF() bool {
	if a.ContentType == "application/pdf" {
		return true
	}
	return len(a.Filename) > 4 && a.Filename[len(a.Filename)-4:] == ".pdf"
}
