package dto

import (
	"github.com/craftworks/mailtriage/internal/enum"
)

// ClassificationResult is the classifier's output: the intent tag plus a flat
// bag of extracted fields whose presence depends on the tag.
type ClassificationResult struct {
	Classification enum.EmailClassification `json:"classification"`

	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	Company      string `json:"company,omitempty"`

	MeetingDate string  `json:"meeting_date,omitempty"`
	QuoteAmount float64 `json:"quote_amount,omitempty"`
	Summary     string  `json:"summary,omitempty"`

	// Populated only for supplier_invoice
	Invoice *InvoiceData `json:"invoice,omitempty"`
}

// Data flattens the result for storage in the email's classification_data
// jsonb column.
func (r *ClassificationResult) Data() map[string]interface{} {
	data := map[string]interface{}{
		"classification": r.Classification.String(),
	}
	if r.ContactName != "" {
		data["contact_name"] = r.ContactName
	}
	if r.ContactEmail != "" {
		data["contact_email"] = r.ContactEmail
	}
	if r.ContactPhone != "" {
		data["contact_phone"] = r.ContactPhone
	}
	if r.Company != "" {
		data["company"] = r.Company
	}
	if r.MeetingDate != "" {
		data["meeting_date"] = r.MeetingDate
	}
	if r.QuoteAmount != 0 {
		data["quote_amount"] = r.QuoteAmount
	}
	if r.Summary != "" {
		data["summary"] = r.Summary
	}
	if r.Invoice != nil {
		data["invoice"] = r.Invoice
	}
	return data
}

// InvoiceData is the structured extraction from a supplier invoice PDF.
type InvoiceData struct {
	SupplierName  string            `json:"supplier_name"`
	InvoiceNumber string            `json:"invoice_number"`
	InvoiceDate   string            `json:"invoice_date"`
	Total         float64           `json:"total"`
	Currency      string            `json:"currency"`
	LineItems     []InvoiceLineItem `json:"line_items"`
}

type InvoiceLineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
	Amount      float64 `json:"amount"`
}
