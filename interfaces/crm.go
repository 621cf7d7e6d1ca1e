package interfaces

import (
	"context"

	"github.com/craftworks/mailtriage/dto"
)

// CRMGateway is the external CRM/ERP collaborator. Every create is expected
// to be idempotent in effect: find-or-create wherever a natural key exists.
type CRMGateway interface {
	// CommunicationExists checks for an existing communication carrying the
	// given source message id.
	CommunicationExists(ctx context.Context, messageID string) (bool, error)

	CreateLead(ctx context.Context, lead dto.LeadInput) (string, error)

	// FindLeadByEmail returns the lead id for a contact email, or "" when
	// no lead exists.
	FindLeadByEmail(ctx context.Context, email string) (string, error)

	CreateCommunication(ctx context.Context, comm dto.CommunicationInput) (string, error)
	CountCommunications(ctx context.Context, leadID string) (int, error)
	UpdateLeadStatus(ctx context.Context, leadID, status string) error
	RegenerateLeadSummary(ctx context.Context, leadID string) error

	FindOrCreateSupplier(ctx context.Context, name string) (string, error)
	CreateExpense(ctx context.Context, expense dto.ExpenseInput) (string, error)
}
