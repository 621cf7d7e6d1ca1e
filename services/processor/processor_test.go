package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/craftworks/mailtriage/config"
	"github.com/craftworks/mailtriage/dto"
	mailtriage_errors "github.com/craftworks/mailtriage/errors"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/models"
	"github.com/craftworks/mailtriage/services/handlers"
)

type processorFixture struct {
	emails     *mockEmailRepo
	attachRepo *mockAttachmentRepo
	auditLog   *mockAuditLog
	classifier *mockClassifier
	source     *mockMailSource
	publisher  *mockPublisher
	handler    *mockHandler
	processor  *EmailProcessor
}

func newFixture(t *testing.T, claims ...enum.EmailClassification) *processorFixture {
	t.Helper()

	f := &processorFixture{
		emails:     new(mockEmailRepo),
		attachRepo: new(mockAttachmentRepo),
		auditLog:   new(mockAuditLog),
		classifier: new(mockClassifier),
		source:     new(mockMailSource),
		publisher:  new(mockPublisher),
		handler:    newMockHandler(claims...),
	}

	f.processor = NewEmailProcessor(
		f.emails,
		f.attachRepo,
		f.auditLog,
		map[enum.Doctype]interfaces.Classifier{
			enum.DoctypeLead:    f.classifier,
			enum.DoctypeExpense: f.classifier,
		},
		handlers.NewRouter(f.handler),
		f.source,
		f.publisher,
		&config.ProcessingConfig{BatchSize: 25, MaxRetries: 3, FetchOverlapMinutes: 60},
		&config.IMAPConfig{LeadsFolder: "INBOX", ExpenseFolder: "Invoices", SentFolder: "Sent"},
		testLogger(),
	)
	return f
}

func stagedEmail(id string, doctype enum.Doctype) *models.Email {
	date := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	return &models.Email{
		ID:        id,
		MessageID: "<" + id + "@acme.com>",
		Mailbox:   "ops@craftworks.example",
		Folder:    "INBOX",
		Doctype:   doctype,
		Subject:   "subject " + id,
		Sender:    "jane@acme.com",
		EmailDate: &date,
	}
}

func (f *processorFixture) expectNoFetch() {
	f.source.On("Mailbox").Return("ops@craftworks.example")
	f.emails.On("LatestEmailDate", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.source.On("FetchSince", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
}

func TestProcessPending_TransientErrorAbortsBatch(t *testing.T) {
	f := newFixture(t, enum.ClassificationNewLead)
	f.expectNoFetch()

	first := stagedEmail("email_1", enum.DoctypeLead)
	second := stagedEmail("email_2", enum.DoctypeLead)
	third := stagedEmail("email_3", enum.DoctypeLead)
	f.emails.On("GetUnprocessed", mock.Anything, enum.DoctypeLead, 25, mock.Anything, interfaces.OrderAsc).
		Return([]*models.Email{first, second, third}, nil)

	f.classifier.On("Classify", mock.Anything, first).
		Return(&dto.ClassificationResult{Classification: enum.ClassificationNewLead}, nil).Once()
	f.classifier.On("Classify", mock.Anything, second).
		Return(nil, mailtriage_errors.ErrAIRateLimited).Once()

	f.handler.On("Handle", mock.Anything, first, mock.Anything, mock.Anything, dto.ModeRealtime).
		Return(dto.ProcessingResult{Success: true, Action: dto.ActionLeadCreated, ResultID: "lead_1"})
	f.emails.On("MarkProcessed", mock.Anything, "email_1", enum.ClassificationNewLead, mock.Anything).Return(nil)
	f.auditLog.On("Add", mock.Anything, mock.Anything).Return("plog_1", nil)
	f.publisher.On("PublishProcessingOutcome", mock.Anything, mock.Anything).Return(nil)

	stats, err := f.processor.ProcessPending(context.Background(), enum.DoctypeLead, 0)

	require.NoError(t, err)
	assert.True(t, stats.Aborted)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, stats.Processed)
	// The email hit by the transient failure and everything after it stay
	// untouched: no MarkError, no MarkProcessed.
	f.emails.AssertNotCalled(t, "MarkError", mock.Anything, mock.Anything, mock.Anything)
	f.classifier.AssertNumberOfCalls(t, "Classify", 2)
}

func TestProcessPending_IrrelevantIsTerminalWithoutHandler(t *testing.T) {
	f := newFixture(t, enum.ClassificationNewLead)
	f.expectNoFetch()

	email := stagedEmail("email_1", enum.DoctypeLead)
	f.emails.On("GetUnprocessed", mock.Anything, enum.DoctypeLead, 25, mock.Anything, interfaces.OrderAsc).
		Return([]*models.Email{email}, nil)
	f.classifier.On("Classify", mock.Anything, email).
		Return(&dto.ClassificationResult{Classification: enum.ClassificationIrrelevant}, nil)
	f.emails.On("MarkProcessed", mock.Anything, "email_1", enum.ClassificationIrrelevant, mock.Anything).Return(nil)
	f.auditLog.On("Add", mock.Anything, mock.MatchedBy(func(entry *models.ProcessingLog) bool {
		return entry.Action == dto.ActionIrrelevant
	})).Return("plog_1", nil)
	f.publisher.On("PublishProcessingOutcome", mock.Anything, mock.Anything).Return(nil)

	stats, err := f.processor.ProcessPending(context.Background(), enum.DoctypeLead, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Irrelevant)
	f.handler.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.emails.AssertExpectations(t)
}

func TestProcessPending_NonRetryableFailureStillProcessed(t *testing.T) {
	f := newFixture(t, enum.ClassificationSupplierInvoice)
	f.expectNoFetch()

	email := stagedEmail("email_1", enum.DoctypeExpense)
	email.Folder = "Invoices"
	f.emails.On("GetUnprocessed", mock.Anything, enum.DoctypeExpense, 25, mock.Anything, interfaces.OrderAsc).
		Return([]*models.Email{email}, nil)
	f.classifier.On("Classify", mock.Anything, email).
		Return(&dto.ClassificationResult{Classification: enum.ClassificationSupplierInvoice}, nil)
	f.handler.On("Handle", mock.Anything, email, mock.Anything, mock.Anything, dto.ModeRealtime).
		Return(dto.ProcessingResult{Action: dto.ActionSkipped, Error: "supplier invoice has no pdf attachment"})
	f.emails.On("MarkProcessed", mock.Anything, "email_1", enum.ClassificationSupplierInvoice, mock.Anything).Return(nil)
	f.auditLog.On("Add", mock.Anything, mock.Anything).Return("plog_1", nil)
	f.publisher.On("PublishProcessingOutcome", mock.Anything, mock.Anything).Return(nil)

	stats, err := f.processor.ProcessPending(context.Background(), enum.DoctypeExpense, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Errors)
	f.emails.AssertNotCalled(t, "MarkError", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessPending_RetryableFailureMarksError(t *testing.T) {
	f := newFixture(t, enum.ClassificationNewLead)
	f.expectNoFetch()

	email := stagedEmail("email_1", enum.DoctypeLead)
	f.emails.On("GetUnprocessed", mock.Anything, enum.DoctypeLead, 25, mock.Anything, interfaces.OrderAsc).
		Return([]*models.Email{email}, nil)
	f.classifier.On("Classify", mock.Anything, email).
		Return(&dto.ClassificationResult{Classification: enum.ClassificationNewLead}, nil)
	f.handler.On("Handle", mock.Anything, email, mock.Anything, mock.Anything, dto.ModeRealtime).
		Return(dto.ProcessingResult{Action: dto.ActionDedupCheckFailed, Error: "crm timeout", Retryable: true})
	f.emails.On("MarkError", mock.Anything, "email_1", "crm timeout").Return(nil)
	f.auditLog.On("Add", mock.Anything, mock.Anything).Return("plog_1", nil)
	f.publisher.On("PublishProcessingOutcome", mock.Anything, mock.Anything).Return(nil)

	stats, err := f.processor.ProcessPending(context.Background(), enum.DoctypeLead, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)
	f.emails.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.emails.AssertExpectations(t)
}

func TestProcessPending_FetchUsesHighWaterMarkWithOverlap(t *testing.T) {
	f := newFixture(t, enum.ClassificationNewLead)

	latest := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	f.source.On("Mailbox").Return("ops@craftworks.example")
	f.emails.On("LatestEmailDate", mock.Anything, "ops@craftworks.example", "INBOX").Return(&latest, nil)
	f.source.On("FetchSince", mock.Anything, "INBOX", latest.Add(-60*time.Minute)).Return(nil, nil)
	f.emails.On("GetUnprocessed", mock.Anything, enum.DoctypeLead, 25, mock.Anything, interfaces.OrderAsc).
		Return([]*models.Email{}, nil)

	_, err := f.processor.ProcessPending(context.Background(), enum.DoctypeLead, 0)

	require.NoError(t, err)
	f.source.AssertExpectations(t)
}

func TestProcessPending_StagesNewMessagesWithDoctype(t *testing.T) {
	f := newFixture(t, enum.ClassificationNewLead)

	f.source.On("Mailbox").Return("ops@craftworks.example")
	f.emails.On("LatestEmailDate", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.source.On("FetchSince", mock.Anything, "INBOX", mock.Anything).Return([]*dto.InboundMessage{
		{
			MessageID: "<new@acme.com>",
			Mailbox:   "ops@craftworks.example",
			Folder:    "INBOX",
			Subject:   "hello",
			Date:      time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
			Attachments: []dto.InboundAttachment{
				{Filename: "brief.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
			},
		},
		{MessageID: "<dup@acme.com>", Folder: "INBOX", Date: time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)},
	}, nil)

	f.emails.On("Exists", mock.Anything, "<new@acme.com>").Return(false, nil)
	f.emails.On("Exists", mock.Anything, "<dup@acme.com>").Return(true, nil)
	f.emails.On("Create", mock.Anything, mock.MatchedBy(func(email *models.Email) bool {
		return email.Doctype == enum.DoctypeLead && email.HasAttachments && email.Folder == "INBOX"
	})).Return("email_new", nil)
	f.attachRepo.On("Store", mock.Anything, mock.MatchedBy(func(att *models.EmailAttachment) bool {
		return att.EmailID == "email_new" && att.Filename == "brief.pdf"
	}), []byte("%PDF")).Return(nil)
	f.emails.On("GetUnprocessed", mock.Anything, enum.DoctypeLead, 25, mock.Anything, interfaces.OrderAsc).
		Return([]*models.Email{}, nil)

	stats, err := f.processor.ProcessPending(context.Background(), enum.DoctypeLead, 0)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 1, stats.Stored)
	f.attachRepo.AssertExpectations(t)
	f.emails.AssertExpectations(t)
}

func TestBackfill_DryRunPerformsNoWrites(t *testing.T) {
	f := newFixture(t, enum.ClassificationNewLead)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.source.On("FetchSince", mock.Anything, "INBOX", since).Return([]*dto.InboundMessage{
		{MessageID: "<a@acme.com>", Date: since.Add(time.Hour)},
	}, nil)
	f.source.On("FetchSince", mock.Anything, "Sent", since).Return([]*dto.InboundMessage{
		{MessageID: "<b@acme.com>", Date: since.Add(2 * time.Hour)},
	}, nil)

	stats, err := f.processor.Backfill(context.Background(), dto.BackfillRequest{
		Doctype: enum.DoctypeLead,
		Since:   since,
		DryRun:  true,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 0, stats.Stored)
	f.emails.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
	f.emails.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.emails.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBackfill_UsesEmailDateAndBackfillMode(t *testing.T) {
	f := newFixture(t, enum.ClassificationNewLead)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.source.On("FetchSince", mock.Anything, mock.Anything, since).Return(nil, nil)

	email := stagedEmail("email_old", enum.DoctypeLead)
	emailDate := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
	email.EmailDate = &emailDate

	f.emails.On("GetUnprocessed", mock.Anything, enum.DoctypeLead, -1, &since, interfaces.OrderAsc).
		Return([]*models.Email{email}, nil)
	f.classifier.On("Classify", mock.Anything, email).
		Return(&dto.ClassificationResult{Classification: enum.ClassificationNewLead}, nil)
	f.handler.On("Handle", mock.Anything, email, mock.Anything, emailDate, dto.ModeBackfill).
		Return(dto.ProcessingResult{Success: true, Action: dto.ActionLeadCreated, ResultID: "lead_1"})
	f.emails.On("MarkProcessed", mock.Anything, "email_old", enum.ClassificationNewLead, mock.Anything).Return(nil)
	f.auditLog.On("Add", mock.Anything, mock.Anything).Return("plog_1", nil)
	f.publisher.On("PublishProcessingOutcome", mock.Anything, mock.MatchedBy(func(outcome dto.ProcessingOutcome) bool {
		return outcome.OccurredAt.Equal(emailDate) && outcome.Action == dto.ActionLeadCreated
	})).Return(nil)

	stats, err := f.processor.Backfill(context.Background(), dto.BackfillRequest{
		Doctype: enum.DoctypeLead,
		Since:   since,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Succeeded)
	f.handler.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestBackfill_UntilFiltersLaterMessages(t *testing.T) {
	f := newFixture(t, enum.ClassificationNewLead)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	f.source.On("FetchSince", mock.Anything, "Invoices", since).Return([]*dto.InboundMessage{
		{MessageID: "<in@s.example>", Date: since.Add(24 * time.Hour)},
		{MessageID: "<out@s.example>", Date: until.Add(24 * time.Hour)},
	}, nil)

	stats, err := f.processor.Backfill(context.Background(), dto.BackfillRequest{
		Doctype: enum.DoctypeExpense,
		Since:   since,
		Until:   &until,
		DryRun:  true,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Fetched)
}

func TestFetch_StagesWithoutProcessing(t *testing.T) {
	f := newFixture(t, enum.ClassificationNewLead)

	f.source.On("Mailbox").Return("ops@craftworks.example")
	f.emails.On("LatestEmailDate", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.source.On("FetchSince", mock.Anything, "INBOX", mock.Anything).Return([]*dto.InboundMessage{
		{MessageID: "<new@acme.com>", Folder: "INBOX", Date: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)},
	}, nil)
	f.emails.On("Exists", mock.Anything, "<new@acme.com>").Return(false, nil)
	f.emails.On("Create", mock.Anything, mock.Anything).Return("email_new", nil)

	stats, err := f.processor.Fetch(context.Background(), enum.DoctypeLead)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Fetched)
	assert.Equal(t, 1, stats.Stored)
	f.emails.AssertNotCalled(t, "GetUnprocessed", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestBackfill_ConcurrentRunRejected(t *testing.T) {
	f := newFixture(t, enum.ClassificationNewLead)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.source.On("FetchSince", mock.Anything, "INBOX", since).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return([]*dto.InboundMessage{}, nil)
	f.source.On("FetchSince", mock.Anything, "Sent", since).Return([]*dto.InboundMessage{}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := f.processor.Backfill(context.Background(), dto.BackfillRequest{
			Doctype: enum.DoctypeLead,
			Since:   since,
			DryRun:  true,
		})
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first backfill never started fetching")
	}

	// The first run is still inside its fetch; a second run of any doctype
	// must be turned away instead of interleaving with it.
	_, err := f.processor.Backfill(context.Background(), dto.BackfillRequest{
		Doctype: enum.DoctypeExpense,
		Since:   since,
		DryRun:  true,
	})
	assert.ErrorIs(t, err, mailtriage_errors.ErrBackfillRunning)

	close(release)
	require.NoError(t, <-done)
}

func TestBackfill_SentFolderMailJoinsLeadPipeline(t *testing.T) {
	f := newFixture(t, enum.ClassificationNewLead)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.source.On("FetchSince", mock.Anything, "INBOX", since).Return([]*dto.InboundMessage{
		{MessageID: "<inbox@acme.com>", Folder: "INBOX", Date: since.Add(time.Hour)},
	}, nil)
	f.source.On("FetchSince", mock.Anything, "Sent", since).Return([]*dto.InboundMessage{
		{MessageID: "<sent@acme.com>", Folder: "Sent", Date: since.Add(2 * time.Hour)},
	}, nil)
	f.emails.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
	f.emails.On("Create", mock.Anything, mock.MatchedBy(func(email *models.Email) bool {
		return email.Doctype == enum.DoctypeLead
	})).Return("email_x", nil).Twice()
	f.emails.On("GetUnprocessed", mock.Anything, enum.DoctypeLead, -1, mock.Anything, interfaces.OrderAsc).
		Return([]*models.Email{}, nil)

	_, err := f.processor.Backfill(context.Background(), dto.BackfillRequest{
		Doctype: enum.DoctypeLead,
		Since:   since,
	})

	require.NoError(t, err)
	f.emails.AssertExpectations(t)
}
