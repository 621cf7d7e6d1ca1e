package interfaces

import (
	"context"
	"time"

	"github.com/craftworks/mailtriage/dto"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/models"
)

// Handler is a side-effecting unit acting on a classified email.
//
// occurredAt is the timestamp stamped onto CRM records: the run time for
// realtime processing, the mail's original date for backfill. mode is the
// explicit per-call processing mode; handlers hold no batch state.
type Handler interface {
	CanHandle(classification enum.EmailClassification) bool
	Handle(ctx context.Context, email *models.Email, result *dto.ClassificationResult, occurredAt time.Time, mode dto.ProcessingMode) dto.ProcessingResult
}

// EventPublisher publishes processing outcomes. Optional collaborator.
type EventPublisher interface {
	PublishProcessingOutcome(ctx context.Context, outcome dto.ProcessingOutcome) error
}
