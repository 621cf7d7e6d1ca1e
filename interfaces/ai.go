package interfaces

import (
	"golang.org/x/net/context"

	"github.com/craftworks/mailtriage/dto"
)

// AIClient is the model provider. Implementations must return the sentinel
// errors from the errors package for rate-limit and authentication failures
// so callers can abort a batch early.
type AIClient interface {
	Complete(ctx context.Context, request dto.CompletionRequest) (*dto.CompletionResponse, error)
	ExtractDocument(ctx context.Context, request dto.DocumentExtractionRequest) (*dto.DocumentExtractionResponse, error)
}
