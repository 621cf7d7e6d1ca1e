package processor

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/craftworks/mailtriage/dto"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/models"
)

func testLogger() logger.Logger {
	log := logger.NewAppLogger(&logger.Config{LogLevel: "error", DevMode: true, Encoder: "console"})
	log.InitLogger()
	return log
}

type mockEmailRepo struct {
	mock.Mock
}

func (m *mockEmailRepo) Exists(ctx context.Context, messageID string) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *mockEmailRepo) Create(ctx context.Context, email *models.Email) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *mockEmailRepo) GetByID(ctx context.Context, id string) (*models.Email, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Email), args.Error(1)
}

func (m *mockEmailRepo) GetByMessageID(ctx context.Context, messageID string) (*models.Email, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Email), args.Error(1)
}

func (m *mockEmailRepo) GetUnprocessed(ctx context.Context, doctype enum.Doctype, limit int, since *time.Time, order interfaces.SortOrder) ([]*models.Email, error) {
	args := m.Called(ctx, doctype, limit, since, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Email), args.Error(1)
}

func (m *mockEmailRepo) GetByDate(ctx context.Context, since time.Time, until *time.Time, limit int, order interfaces.SortOrder) ([]*models.Email, error) {
	args := m.Called(ctx, since, until, limit, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Email), args.Error(1)
}

func (m *mockEmailRepo) MarkProcessed(ctx context.Context, id string, classification enum.EmailClassification, data models.JSONMap) error {
	args := m.Called(ctx, id, classification, data)
	return args.Error(0)
}

func (m *mockEmailRepo) MarkError(ctx context.Context, id string, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

func (m *mockEmailRepo) LatestEmailDate(ctx context.Context, mailbox, folder string) (*time.Time, error) {
	args := m.Called(ctx, mailbox, folder)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *mockEmailRepo) GetStats(ctx context.Context) (*dto.StagingStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.StagingStats), args.Error(1)
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

type mockAuditLog struct {
	mock.Mock
}

func (m *mockAuditLog) Add(ctx context.Context, entry *models.ProcessingLog) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

func (m *mockAuditLog) ListByEmail(ctx context.Context, emailID string) ([]*models.ProcessingLog, error) {
	args := m.Called(ctx, emailID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ProcessingLog), args.Error(1)
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

type mockMailSource struct {
	mock.Mock
}

func (m *mockMailSource) FetchSince(ctx context.Context, folder string, since time.Time) ([]*dto.InboundMessage, error) {
	args := m.Called(ctx, folder, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dto.InboundMessage), args.Error(1)
}

func (m *mockMailSource) Mailbox() string {
	args := m.Called()
	return args.String(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishProcessingOutcome(ctx context.Context, outcome dto.ProcessingOutcome) error {
	args := m.Called(ctx, outcome)
	return args.Error(0)
}

type mockHandler struct {
	mock.Mock
	claims map[enum.EmailClassification]bool
}

func newMockHandler(claims ...enum.EmailClassification) *mockHandler {
	h := &mockHandler{claims: map[enum.EmailClassification]bool{}}
	for _, c := range claims {
		h.claims[c] = true
	}
	return h
}

func (m *mockHandler) CanHandle(classification enum.EmailClassification) bool {
	return m.claims[classification]
}

func (m *mockHandler) Handle(ctx context.Context, email *models.Email, result *dto.ClassificationResult, occurredAt time.Time, mode dto.ProcessingMode) dto.ProcessingResult {
	args := m.Called(ctx, email, result, occurredAt, mode)
	return args.Get(0).(dto.ProcessingResult)
}
