package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"

	"github.com/craftworks/mailtriage/dto"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/models"
	"github.com/craftworks/mailtriage/internal/tracing"
	"github.com/craftworks/mailtriage/internal/utils"
)

const leadSource = "email"

const (
	directionInbound  = "inbound"
	directionOutbound = "outbound"
)

// Status transitions driven by classification. Plain messages leave the
// lead status untouched.
var leadStatusByClassification = map[enum.EmailClassification]string{
	enum.ClassificationMeetingConfirmed: "meeting_scheduled",
	enum.ClassificationQuoteSent:        "quoted",
}

// LeadHandler owns every lead-pipeline classification: new leads plus all
// follow-up traffic attached to an existing lead.
type LeadHandler struct {
	crm        interfaces.CRMGateway
	classifier interfaces.Classifier
	log        logger.Logger
}

func NewLeadHandler(crm interfaces.CRMGateway, classifier interfaces.Classifier, log logger.Logger) *LeadHandler {
	return &LeadHandler{
		crm:        crm,
		classifier: classifier,
		log:        log,
	}
}

func (h *LeadHandler) CanHandle(classification enum.EmailClassification) bool {
	switch classification {
	case enum.ClassificationNewLead,
		enum.ClassificationClientMessage,
		enum.ClassificationStaffMessage,
		enum.ClassificationMeetingConfirmed,
		enum.ClassificationQuoteSent:
		return true
	}
	return false
}

func (h *LeadHandler) Handle(ctx context.Context, email *models.Email, result *dto.ClassificationResult, occurredAt time.Time, mode dto.ProcessingMode) dto.ProcessingResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "LeadHandler.Handle")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEntity(span, email.ID)
	span.SetTag("classification", result.Classification.String())
	span.SetTag("mode", string(mode))

	// Dedup on the source message id. A failed check is a transport fault,
	// not a verdict; the email stays pending and retries later.
	exists, err := h.crm.CommunicationExists(ctx, email.MessageID)
	if err != nil {
		tracing.TraceErr(span, err)
		return dto.ProcessingResult{
			Action:    dto.ActionDedupCheckFailed,
			Error:     err.Error(),
			Retryable: true,
		}
	}
	if exists {
		return dto.ProcessingResult{
			Success: true,
			Action:  dto.ActionSkippedDuplicate,
			Details: "communication already recorded for message id",
		}
	}

	contactEmail := h.resolveContactEmail(email, result)
	if contactEmail == "" {
		return dto.ProcessingResult{
			Success: true,
			Action:  dto.ActionSkipped,
			Details: "no usable contact address",
		}
	}

	leadID, err := h.crm.FindLeadByEmail(ctx, contactEmail)
	if err != nil {
		tracing.TraceErr(span, err)
		return dto.ProcessingResult{
			Action:    dto.ActionDedupCheckFailed,
			Error:     err.Error(),
			Retryable: true,
		}
	}

	created := false
	if leadID == "" {
		if result.Classification != enum.ClassificationNewLead {
			// Follow-up traffic without a lead has nothing to attach to
			return dto.ProcessingResult{
				Success: true,
				Action:  dto.ActionSkippedNoLead,
				Details: "no lead found for " + contactEmail,
			}
		}

		name := result.ContactName
		if name == "" {
			name = contactEmail
		}
		company := result.Company
		if company == "" {
			company = utils.ExtractDomainFromEmail(contactEmail)
		}
		leadID, err = h.crm.CreateLead(ctx, dto.LeadInput{
			Name:         name,
			ContactEmail: contactEmail,
			ContactPhone: result.ContactPhone,
			Company:      company,
			Source:       leadSource,
		})
		if err != nil {
			tracing.TraceErr(span, err)
			return dto.ProcessingResult{
				Action:    dto.ActionLeadCreated,
				Error:     err.Error(),
				Retryable: true,
			}
		}
		created = true
		tracing.TagEntity(span, leadID)
	}

	// The CRM threads communications on the subject; reply and forward
	// prefixes would split one conversation into many.
	if _, err := h.crm.CreateCommunication(ctx, dto.CommunicationInput{
		LeadID:    leadID,
		MessageID: email.MessageID,
		Subject:   utils.NormalizeSubject(email.Subject),
		Content:   h.communicationContent(email, result),
		Sender:    email.Sender,
		Recipient: email.Recipient,
		SentAt:    occurredAt,
		Direction: h.direction(result.Classification),
	}); err != nil {
		tracing.TraceErr(span, err)
		return dto.ProcessingResult{
			Action:    dto.ActionCommunicationAdded,
			Error:     err.Error(),
			Retryable: true,
		}
	}

	if status, ok := leadStatusByClassification[result.Classification]; ok {
		if err := h.crm.UpdateLeadStatus(ctx, leadID, status); err != nil {
			h.log.Warnf("failed to update lead %s status to %s: %v", leadID, status, err)
			tracing.TraceErr(span, err)
		}
	}

	// The message-id dedup above guarantees the communication we just wrote
	// is new, so a successful count confirms the thread grew.
	details := ""
	count, countErr := h.crm.CountCommunications(ctx, leadID)
	if countErr != nil {
		h.log.Warnf("failed to count communications for lead %s: %v", leadID, countErr)
		tracing.TraceErr(span, countErr)
	} else {
		details = fmt.Sprintf("communications=%d", count)
	}

	// Summary regeneration is an AI round trip per lead; backfill runs
	// suppress it, and without a confirmed count it waits for the next
	// realtime touch.
	if mode == dto.ModeRealtime && countErr == nil && count > 0 {
		if err := h.crm.RegenerateLeadSummary(ctx, leadID); err != nil {
			h.log.Warnf("failed to regenerate summary for lead %s: %v", leadID, err)
			tracing.TraceErr(span, err)
		}
	}

	action := dto.ActionCommunicationAdded
	if created {
		action = dto.ActionLeadCreated
	}
	return dto.ProcessingResult{
		Success:  true,
		Action:   action,
		ResultID: leadID,
		Details:  details,
	}
}

// resolveContactEmail picks the address the lead is keyed on: the extracted
// contact when the model found one, otherwise the counterparty on the wire.
// Invalid and system-generated addresses are rejected.
func (h *LeadHandler) resolveContactEmail(email *models.Email, result *dto.ClassificationResult) string {
	candidates := []string{result.ContactEmail}
	if h.direction(result.Classification) == directionOutbound {
		candidates = append(candidates, email.Recipient)
	} else {
		candidates = append(candidates, email.Sender)
	}

	for _, candidate := range candidates {
		candidate = utils.ExtractAddress(candidate)
		if candidate == "" {
			continue
		}
		validation := mailvalidate.ValidateEmailSyntax(candidate)
		if !validation.IsValid || validation.IsSystemGenerated {
			continue
		}
		return validation.CleanEmail
	}
	return ""
}

// Outbound traffic is mail our staff sent; the lead contact sits on the
// recipient side.
func (h *LeadHandler) direction(classification enum.EmailClassification) string {
	switch classification {
	case enum.ClassificationStaffMessage, enum.ClassificationQuoteSent:
		return directionOutbound
	}
	return directionInbound
}

func (h *LeadHandler) communicationContent(email *models.Email, result *dto.ClassificationResult) string {
	body := email.BodyPlain
	if body == "" {
		body = email.BodyHTML
	}
	content := h.classifier.ExtractNewMessage(body)
	if content == "" {
		content = result.Summary
	}
	return content
}
