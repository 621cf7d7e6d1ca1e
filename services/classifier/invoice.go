package classifier

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/craftworks/mailtriage/dto"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/models"
	"github.com/craftworks/mailtriage/internal/tracing"
)

// Invoices carry their totals on the first pages; rendering more is wasted
// vision tokens.
const maxInvoicePages = 3

const invoiceSystemPrompt = `You detect supplier invoices addressed to a services company.
Respond with a single JSON object:
{"classification": "supplier_invoice" or "irrelevant", "summary": string}`

const invoiceExtractionPrompt = `Extract the invoice fields from this document.
Respond with a single JSON object:
{"supplier_name": string, "invoice_number": string, "invoice_date": "YYYY-MM-DD",
 "total": number, "currency": string,
 "line_items": [{"description": string, "quantity": number, "rate": number, "amount": number}]}`

// InvoiceClassifier detects supplier invoices and extracts structured data
// from their PDF attachments.
type InvoiceClassifier struct {
	ai  interfaces.AIClient
	log logger.Logger
}

func NewInvoiceClassifier(ai interfaces.AIClient, log logger.Logger) *InvoiceClassifier {
	return &InvoiceClassifier{
		ai:  ai,
		log: log,
	}
}

func (c *InvoiceClassifier) Classify(ctx context.Context, email *models.Email) (*dto.ClassificationResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "InvoiceClassifier.Classify")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEntity(span, email.ID)

	body := email.BodyPlain
	if body == "" {
		body = email.BodyHTML
	}

	response, err := c.ai.Complete(ctx, dto.CompletionRequest{
		System:   invoiceSystemPrompt,
		Prompt:   buildEmailPrompt(email, ExtractNewMessage(body)),
		JSONMode: true,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "invoice classification request failed")
	}

	result, ok := parseClassification(response.Content)
	if !ok {
		c.log.Warnf("unparsable invoice classifier response for email %s, degrading to irrelevant", email.ID)
		span.SetTag("degraded", true)
		return &dto.ClassificationResult{Classification: enum.ClassificationIrrelevant}, nil
	}

	// This classifier only ever emits supplier_invoice or irrelevant
	if result.Classification != enum.ClassificationSupplierInvoice {
		result.Classification = enum.ClassificationIrrelevant
	}

	span.SetTag("classification", result.Classification.String())
	return result, nil
}

func (c *InvoiceClassifier) ExtractNewMessage(body string) string {
	return ExtractNewMessage(body)
}

// ExtractInvoice runs vision extraction over the first pages of a PDF. When
// the model finds no line items, one synthesized item covering the full
// total is returned instead of an empty set.
func (c *InvoiceClassifier) ExtractInvoice(ctx context.Context, pdf []byte, filename string) (*dto.InvoiceData, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "InvoiceClassifier.ExtractInvoice")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("filename", filename)

	response, err := c.ai.ExtractDocument(ctx, dto.DocumentExtractionRequest{
		Prompt:      invoiceExtractionPrompt,
		Filename:    filename,
		ContentType: "application/pdf",
		Data:        base64.StdEncoding.EncodeToString(pdf),
		MaxPages:    maxInvoicePages,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "invoice extraction request failed")
	}

	var invoice dto.InvoiceData
	if err := json.Unmarshal([]byte(stripCodeFence(response.Content)), &invoice); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "unparsable invoice extraction response")
	}

	if invoice.SupplierName == "" {
		invoice.SupplierName = "Unknown Supplier"
	}

	if len(invoice.LineItems) == 0 {
		span.SetTag("synthesized_line_item", true)
		invoice.LineItems = []dto.InvoiceLineItem{
			{
				Description: "Invoice " + invoice.InvoiceNumber,
				Quantity:    1,
				Rate:        invoice.Total,
				Amount:      invoice.Total,
			},
		}
	}

	return &invoice, nil
}
