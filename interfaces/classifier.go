package interfaces

import (
	"context"

	"github.com/craftworks/mailtriage/dto"
	"github.com/craftworks/mailtriage/internal/models"
)

// Classifier turns one staged email into a ClassificationResult.
//
// Error contract: transient provider failures (rate limit, auth) propagate to
// the caller so the batch can abort; malformed model responses are absorbed
// and degrade to the irrelevant classification.
type Classifier interface {
	Classify(ctx context.Context, email *models.Email) (*dto.ClassificationResult, error)

	// ExtractNewMessage strips quoted-reply boilerplate from a body. It
	// never fails; when extraction is inconclusive it returns the original
	// body truncated to a safe length.
	ExtractNewMessage(body string) string
}

// InvoiceExtractor is the additional surface of the invoice classifier.
type InvoiceExtractor interface {
	ExtractInvoice(ctx context.Context, pdf []byte, filename string) (*dto.InvoiceData, error)
}
