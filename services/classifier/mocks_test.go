package classifier

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/craftworks/mailtriage/dto"
)

type mockAIClient struct {
	mock.Mock
}

func (m *mockAIClient) Complete(ctx context.Context, request dto.CompletionRequest) (*dto.CompletionResponse, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.CompletionResponse), args.Error(1)
}

func (m *mockAIClient) ExtractDocument(ctx context.Context, request dto.DocumentExtractionRequest) (*dto.DocumentExtractionResponse, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.DocumentExtractionResponse), args.Error(1)
}
