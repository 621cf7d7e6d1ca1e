package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/craftworks/mailtriage/dto"
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/models"
)

func testLogger() logger.Logger {
	log := logger.NewAppLogger(&logger.Config{LogLevel: "error", DevMode: true, Encoder: "console"})
	log.InitLogger()
	return log
}

type mockCRM struct {
	mock.Mock
}

func (m *mockCRM) CommunicationExists(ctx context.Context, messageID string) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *mockCRM) CreateLead(ctx context.Context, lead dto.LeadInput) (string, error) {
	args := m.Called(ctx, lead)
	return args.String(0), args.Error(1)
}

func (m *mockCRM) FindLeadByEmail(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *mockCRM) CreateCommunication(ctx context.Context, comm dto.CommunicationInput) (string, error) {
	args := m.Called(ctx, comm)
	return args.String(0), args.Error(1)
}

func (m *mockCRM) CountCommunications(ctx context.Context, leadID string) (int, error) {
	args := m.Called(ctx, leadID)
	return args.Int(0), args.Error(1)
}

func (m *mockCRM) UpdateLeadStatus(ctx context.Context, leadID, status string) error {
	args := m.Called(ctx, leadID, status)
	return args.Error(0)
}

func (m *mockCRM) RegenerateLeadSummary(ctx context.Context, leadID string) error {
	args := m.Called(ctx, leadID)
	return args.Error(0)
}

func (m *mockCRM) FindOrCreateSupplier(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *mockCRM) CreateExpense(ctx context.Context, expense dto.ExpenseInput) (string, error) {
	args := m.Called(ctx, expense)
	return args.String(0), args.Error(1)
}

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Classify(ctx context.Context, email *models.Email) (*dto.ClassificationResult, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ClassificationResult), args.Error(1)
}

func (m *mockClassifier) ExtractNewMessage(body string) string {
	args := m.Called(body)
	return args.String(0)
}

type mockInvoiceExtractor struct {
	mock.Mock
}

func (m *mockInvoiceExtractor) ExtractInvoice(ctx context.Context, pdf []byte, filename string) (*dto.InvoiceData, error) {
	args := m.Called(ctx, pdf, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.InvoiceData), args.Error(1)
}

type mockAttachmentRepo struct {
	mock.Mock
}

func (m *mockAttachmentRepo) Create(ctx context.Context, attachment *models.EmailAttachment) error {
	args := m.Called(ctx, attachment)
	return args.Error(0)
}

func (m *mockAttachmentRepo) GetByID(ctx context.Context, id string) (*models.EmailAttachment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailAttachment), args.Error(1)
}

func (m *mockAttachmentRepo) ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error) {
	args := m.Called(ctx, emailID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EmailAttachment), args.Error(1)
}

func (m *mockAttachmentRepo) Store(ctx context.Context, attachment *models.EmailAttachment, data []byte) error {
	args := m.Called(ctx, attachment, data)
	return args.Error(0)
}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *mockStorage) Download(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockStorage) GetPublicURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}
