package interfaces

import (
	"context"

	"github.com/craftworks/mailtriage/internal/models"
)

type EmailAttachmentRepository interface {
	Create(ctx context.Context, attachment *models.EmailAttachment) error
	GetByID(ctx context.Context, id string) (*models.EmailAttachment, error)
	ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error)

	// Store uploads the payload to blob storage and persists the resulting
	// URL on the attachment row.
	Store(ctx context.Context, attachment *models.EmailAttachment, data []byte) error
}
