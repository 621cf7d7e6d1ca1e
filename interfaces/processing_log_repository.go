package interfaces

import (
	"context"

	"github.com/craftworks/mailtriage/internal/models"
)

// ProcessingLogRepository is append-only; entries are never mutated.
type ProcessingLogRepository interface {
	Add(ctx context.Context, entry *models.ProcessingLog) (string, error)
	ListByEmail(ctx context.Context, emailID string) ([]*models.ProcessingLog, error)
}
