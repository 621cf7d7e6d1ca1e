package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/craftworks/mailtriage/internal/utils"
)

// ProcessingLog is the append-only audit trail. One entry per handled email;
// entries are never updated or deleted.
type ProcessingLog struct {
	ID      string `gorm:"column:id;type:varchar(50);primaryKey"`
	EmailID string `gorm:"column:email_id;type:varchar(50);index;not null"`

	// Outcome tag, e.g. lead_created, skipped_duplicate, skipped_no_lead
	Action string `gorm:"column:action;type:varchar(100);index;not null"`

	// Identifier of the CRM record touched, if any
	ResultID string `gorm:"column:result_id;type:varchar(255)"`
	Details  string `gorm:"column:details;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
}

func (ProcessingLog) TableName() string {
	return "processing_logs"
}

func (p *ProcessingLog) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = utils.GenerateNanoIDWithPrefix("plog", 16)
	}
	p.CreatedAt = utils.Now()
	return nil
}
