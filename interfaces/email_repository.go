package interfaces

import (
	"context"
	"time"

	"github.com/craftworks/mailtriage/dto"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/models"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "ASC"
	OrderDesc SortOrder = "DESC"
)

// EmailRepository is the staging store. Insertion is idempotent on the
// message_id natural key.
type EmailRepository interface {
	Exists(ctx context.Context, messageID string) (bool, error)

	// Create inserts the email or, when message_id is already stored,
	// returns the existing row's id without error.
	Create(ctx context.Context, email *models.Email) (string, error)

	GetByID(ctx context.Context, id string) (*models.Email, error)
	GetByMessageID(ctx context.Context, messageID string) (*models.Email, error)

	// GetUnprocessed selects pending rows: processed=false, matching
	// doctype, retry_count below the configured cap.
	GetUnprocessed(ctx context.Context, doctype enum.Doctype, limit int, since *time.Time, order SortOrder) ([]*models.Email, error)

	// GetByDate ignores processed and retry_count. Forced re-inspection
	// only; never used for normal dispatch.
	GetByDate(ctx context.Context, since time.Time, until *time.Time, limit int, order SortOrder) ([]*models.Email, error)

	MarkProcessed(ctx context.Context, id string, classification enum.EmailClassification, data models.JSONMap) error
	MarkError(ctx context.Context, id string, message string) error

	LatestEmailDate(ctx context.Context, mailbox, folder string) (*time.Time, error)
	GetStats(ctx context.Context) (*dto.StagingStats, error)
}
