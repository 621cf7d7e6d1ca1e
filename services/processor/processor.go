package processor

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/craftworks/mailtriage/config"
	"github.com/craftworks/mailtriage/dto"
	mailtriage_errors "github.com/craftworks/mailtriage/errors"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/models"
	"github.com/craftworks/mailtriage/internal/tracing"
	"github.com/craftworks/mailtriage/internal/utils"
	"github.com/craftworks/mailtriage/services/handlers"
)

// First fetch for a folder with no staged mail reaches this far back.
const initialLookback = 7 * 24 * time.Hour

// EmailProcessor drives the staged pipeline: fetch, stage, classify,
// dispatch. Realtime and backfill runs share the same per-email loop and
// differ only in mode and timestamps.
type EmailProcessor struct {
	emails      interfaces.EmailRepository
	attachments interfaces.EmailAttachmentRepository
	auditLog    interfaces.ProcessingLogRepository
	classifiers map[enum.Doctype]interfaces.Classifier
	router      handlers.Router
	source      interfaces.MailSource
	publisher   interfaces.EventPublisher
	cfg         *config.ProcessingConfig
	imapCfg     *config.IMAPConfig
	log         logger.Logger
}

func NewEmailProcessor(
	emails interfaces.EmailRepository,
	attachments interfaces.EmailAttachmentRepository,
	auditLog interfaces.ProcessingLogRepository,
	classifiers map[enum.Doctype]interfaces.Classifier,
	router handlers.Router,
	source interfaces.MailSource,
	publisher interfaces.EventPublisher,
	cfg *config.ProcessingConfig,
	imapCfg *config.IMAPConfig,
	log logger.Logger,
) *EmailProcessor {
	return &EmailProcessor{
		emails:      emails,
		attachments: attachments,
		auditLog:    auditLog,
		classifiers: classifiers,
		router:      router,
		source:      source,
		publisher:   publisher,
		cfg:         cfg,
		imapCfg:     imapCfg,
		log:         log,
	}
}

// FolderForDoctype maps a source folder back from the pipeline it feeds.
func (p *EmailProcessor) FolderForDoctype(doctype enum.Doctype) (string, error) {
	switch doctype {
	case enum.DoctypeLead:
		return p.imapCfg.LeadsFolder, nil
	case enum.DoctypeExpense:
		return p.imapCfg.ExpenseFolder, nil
	}
	return "", errors.Wrapf(mailtriage_errors.ErrUnknownDoctype, "%s", doctype)
}

// doctypeForFolder fixes the doctype at ingestion time from the folder the
// message was fetched out of. Sent mail joins the lead pipeline.
func (p *EmailProcessor) doctypeForFolder(folder string) enum.Doctype {
	if folder == p.imapCfg.ExpenseFolder {
		return enum.DoctypeExpense
	}
	return enum.DoctypeLead
}

// highWaterMark is the fetch cutoff for a folder: the latest staged date
// minus the configured overlap. Idempotent staging absorbs the overlap.
func (p *EmailProcessor) highWaterMark(ctx context.Context, folder string) (time.Time, error) {
	latest, err := p.emails.LatestEmailDate(ctx, p.source.Mailbox(), folder)
	if err != nil {
		return time.Time{}, err
	}
	if latest == nil {
		return utils.Now().Add(-initialLookback), nil
	}
	overlap := time.Duration(p.cfg.FetchOverlapMinutes) * time.Minute
	return latest.Add(-overlap), nil
}

// ingestMessages stages fetched messages and uploads their attachments. The
// doctype is fixed per message from its source folder. Returns the number of
// newly staged rows; duplicates are silently absorbed.
func (p *EmailProcessor) ingestMessages(ctx context.Context, messages []*dto.InboundMessage) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailProcessor.ingestMessages")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("count", len(messages))

	stored := 0
	for _, msg := range messages {
		exists, err := p.emails.Exists(ctx, msg.MessageID)
		if err != nil {
			tracing.TraceErr(span, err)
			return stored, err
		}
		if exists {
			continue
		}

		email := &models.Email{
			MessageID:      msg.MessageID,
			Mailbox:        msg.Mailbox,
			Folder:         msg.Folder,
			Doctype:        p.doctypeForFolder(msg.Folder),
			Subject:        msg.Subject,
			Sender:         msg.Sender,
			SenderName:     msg.SenderName,
			Recipient:      msg.Recipient,
			CcAddresses:    msg.CcAddresses,
			EmailDate:      utils.TimePtr(msg.Date),
			BodyPlain:      msg.BodyPlain,
			BodyHTML:       msg.BodyHTML,
			HasAttachments: len(msg.Attachments) > 0,
		}

		emailID, err := p.emails.Create(ctx, email)
		if err != nil {
			tracing.TraceErr(span, err)
			return stored, err
		}
		stored++

		for _, att := range msg.Attachments {
			attachment := &models.EmailAttachment{
				EmailID:     emailID,
				Filename:    att.Filename,
				ContentType: att.ContentType,
			}
			if err := p.attachments.Store(ctx, attachment, att.Data); err != nil {
				// The email stays staged; a missing attachment surfaces
				// later as a skipped expense, not a lost message.
				p.log.Errorf("failed to store attachment %s for email %s: %v", att.Filename, emailID, err)
				tracing.TraceErr(span, err)
			}
		}
	}

	span.SetTag("stored", stored)
	return stored, nil
}

// processBatch runs the shared per-email loop. A transient AI failure stops
// the loop immediately; every untouched email keeps its pending state.
func (p *EmailProcessor) processBatch(ctx context.Context, runID string, emails []*models.Email, mode dto.ProcessingMode, stats *dto.ProcessingStats) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailProcessor.processBatch")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("run_id", runID)
	span.SetTag("mode", string(mode))
	span.SetTag("batch_size", len(emails))

	for _, email := range emails {
		if err := ctx.Err(); err != nil {
			stats.Aborted = true
			stats.AbortReason = err.Error()
			return
		}

		if err := p.processOne(ctx, runID, email, mode, stats); err != nil {
			// Only transient AI failures propagate out of processOne
			stats.Aborted = true
			stats.AbortReason = err.Error()
			p.log.Warnf("run %s aborted: %v", runID, err)
			tracing.TraceErr(span, err)
			return
		}
	}
}

func (p *EmailProcessor) processOne(ctx context.Context, runID string, email *models.Email, mode dto.ProcessingMode, stats *dto.ProcessingStats) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailProcessor.processOne")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEntity(span, email.ID)

	classifier, ok := p.classifiers[email.Doctype]
	if !ok {
		if err := p.emails.MarkError(ctx, email.ID, "no classifier for doctype "+email.Doctype.String()); err != nil {
			p.log.Errorf("failed to mark email %s errored: %v", email.ID, err)
		}
		stats.Errors++
		return nil
	}

	result, err := classifier.Classify(ctx, email)
	if err != nil {
		if mailtriage_errors.IsTransientAIError(err) {
			return err
		}
		tracing.TraceErr(span, err)
		if markErr := p.emails.MarkError(ctx, email.ID, err.Error()); markErr != nil {
			p.log.Errorf("failed to mark email %s errored: %v", email.ID, markErr)
		}
		stats.Errors++
		return nil
	}

	stats.Processed++
	classification := result.Classification
	data := models.JSONMap(result.Data())
	span.SetTag("classification", classification.String())

	occurredAt := utils.Now()
	if mode == dto.ModeBackfill {
		occurredAt = utils.GetOrDefault(email.EmailDate, occurredAt)
	}

	if classification == enum.ClassificationIrrelevant {
		if err := p.emails.MarkProcessed(ctx, email.ID, classification, data); err != nil {
			p.log.Errorf("failed to mark email %s processed: %v", email.ID, err)
			return nil
		}
		stats.Irrelevant++
		p.audit(ctx, runID, email, classification, dto.ProcessingResult{Success: true, Action: dto.ActionIrrelevant}, occurredAt)
		return nil
	}

	handler := p.router.Route(classification)
	if handler == nil {
		if err := p.emails.MarkProcessed(ctx, email.ID, classification, data); err != nil {
			p.log.Errorf("failed to mark email %s processed: %v", email.ID, err)
			return nil
		}
		stats.Skipped++
		p.audit(ctx, runID, email, classification, dto.ProcessingResult{Success: true, Action: dto.ActionNoHandler}, occurredAt)
		return nil
	}

	handlerResult := handler.Handle(ctx, email, result, occurredAt, mode)
	span.SetTag("action", handlerResult.Action)

	if !handlerResult.Success && handlerResult.Retryable {
		if err := p.emails.MarkError(ctx, email.ID, handlerResult.Error); err != nil {
			p.log.Errorf("failed to mark email %s errored: %v", email.ID, err)
		}
		stats.Errors++
		p.audit(ctx, runID, email, classification, handlerResult, occurredAt)
		return nil
	}

	// Terminal either way: success or a non-retryable skip
	if err := p.emails.MarkProcessed(ctx, email.ID, classification, data); err != nil {
		p.log.Errorf("failed to mark email %s processed: %v", email.ID, err)
		return nil
	}

	switch {
	case handlerResult.Success && isSkipAction(handlerResult.Action):
		stats.Skipped++
	case handlerResult.Success:
		stats.Succeeded++
	default:
		stats.Skipped++
	}

	p.audit(ctx, runID, email, classification, handlerResult, occurredAt)
	return nil
}

func isSkipAction(action string) bool {
	switch action {
	case dto.ActionSkipped, dto.ActionSkippedDuplicate, dto.ActionSkippedNoLead:
		return true
	}
	return false
}

// audit appends the processing-log entry and publishes the outcome event.
// Neither failure blocks the pipeline.
func (p *EmailProcessor) audit(ctx context.Context, runID string, email *models.Email, classification enum.EmailClassification, result dto.ProcessingResult, occurredAt time.Time) {
	details := result.Details
	if details == "" && result.Error != "" {
		details = result.Error
	}

	if _, err := p.auditLog.Add(ctx, &models.ProcessingLog{
		EmailID:  email.ID,
		Action:   result.Action,
		ResultID: result.ResultID,
		Details:  details,
	}); err != nil {
		p.log.Errorf("failed to append processing log for email %s: %v", email.ID, err)
	}

	if p.publisher == nil {
		return
	}
	outcome := dto.ProcessingOutcome{
		RunID:          runID,
		EmailID:        email.ID,
		MessageID:      email.MessageID,
		Doctype:        email.Doctype.String(),
		Classification: classification.String(),
		Action:         result.Action,
		ResultID:       result.ResultID,
		OccurredAt:     occurredAt,
	}
	if err := p.publisher.PublishProcessingOutcome(ctx, outcome); err != nil {
		p.log.Warnf("failed to publish outcome for email %s: %v", email.ID, err)
	}
}
