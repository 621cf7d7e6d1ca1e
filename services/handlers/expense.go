package handlers

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/craftworks/mailtriage/dto"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/models"
	"github.com/craftworks/mailtriage/internal/tracing"
)

// ExpenseHandler turns supplier invoices into CRM expense documents. The
// PDF attachment is the source of truth; emails without one are closed out
// without an expense.
type ExpenseHandler struct {
	crm         interfaces.CRMGateway
	extractor   interfaces.InvoiceExtractor
	attachments interfaces.EmailAttachmentRepository
	storage     interfaces.StorageService
	log         logger.Logger
}

func NewExpenseHandler(
	crm interfaces.CRMGateway,
	extractor interfaces.InvoiceExtractor,
	attachments interfaces.EmailAttachmentRepository,
	storage interfaces.StorageService,
	log logger.Logger,
) *ExpenseHandler {
	return &ExpenseHandler{
		crm:         crm,
		extractor:   extractor,
		attachments: attachments,
		storage:     storage,
		log:         log,
	}
}

func (h *ExpenseHandler) CanHandle(classification enum.EmailClassification) bool {
	return classification == enum.ClassificationSupplierInvoice
}

func (h *ExpenseHandler) Handle(ctx context.Context, email *models.Email, result *dto.ClassificationResult, occurredAt time.Time, mode dto.ProcessingMode) dto.ProcessingResult {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ExpenseHandler.Handle")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEntity(span, email.ID)
	span.SetTag("mode", string(mode))

	attachment, err := h.findInvoicePDF(ctx, email.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return dto.ProcessingResult{
			Action:    dto.ActionExpenseCreated,
			Error:     err.Error(),
			Retryable: true,
		}
	}
	if attachment == nil {
		// Terminal: re-fetching will not grow an attachment
		return dto.ProcessingResult{
			Action:  dto.ActionSkipped,
			Error:   "supplier invoice has no pdf attachment",
			Details: "expense requires a pdf attachment",
		}
	}
	span.SetTag("attachment", attachment.ID)

	invoice := result.Invoice
	if invoice == nil {
		pdf, err := h.storage.Download(ctx, attachment.StorageKey)
		if err != nil {
			tracing.TraceErr(span, err)
			return dto.ProcessingResult{
				Action:    dto.ActionExpenseCreated,
				Error:     err.Error(),
				Retryable: true,
			}
		}

		invoice, err = h.extractor.ExtractInvoice(ctx, pdf, attachment.Filename)
		if err != nil {
			tracing.TraceErr(span, err)
			return dto.ProcessingResult{
				Action:    dto.ActionExpenseCreated,
				Error:     err.Error(),
				Retryable: true,
			}
		}
	}

	supplierID, err := h.crm.FindOrCreateSupplier(ctx, invoice.SupplierName)
	if err != nil {
		tracing.TraceErr(span, err)
		return dto.ProcessingResult{
			Action:    dto.ActionExpenseCreated,
			Error:     err.Error(),
			Retryable: true,
		}
	}
	span.SetTag("supplier", supplierID)

	lineItems := make([]dto.ExpenseLineItem, 0, len(invoice.LineItems))
	for _, item := range invoice.LineItems {
		lineItems = append(lineItems, dto.ExpenseLineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			Amount:      item.Amount,
		})
	}

	expenseID, err := h.crm.CreateExpense(ctx, dto.ExpenseInput{
		SupplierID:    supplierID,
		InvoiceNumber: invoice.InvoiceNumber,
		InvoiceDate:   invoice.InvoiceDate,
		Total:         invoice.Total,
		Currency:      invoice.Currency,
		LineItems:     lineItems,
		AttachmentURL: attachment.StorageURL,
		PostingDate:   occurredAt,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return dto.ProcessingResult{
			Action:    dto.ActionExpenseCreated,
			Error:     err.Error(),
			Retryable: true,
		}
	}

	return dto.ProcessingResult{
		Success:  true,
		Action:   dto.ActionExpenseCreated,
		ResultID: expenseID,
		Details:  "invoice " + invoice.InvoiceNumber,
	}
}

func (h *ExpenseHandler) findInvoicePDF(ctx context.Context, emailID string) (*models.EmailAttachment, error) {
	attachments, err := h.attachments.ListByEmail(ctx, emailID)
	if err != nil {
		return nil, err
	}
	for _, attachment := range attachments {
		if attachment.IsPDF() && attachment.StorageKey != "" {
			return attachment, nil
		}
	}
	return nil, nil
}
