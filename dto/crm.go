package dto

import "time"

// LeadInput creates a new CRM lead record.
type LeadInput struct {
	Name         string
	ContactEmail string
	ContactPhone string
	Company      string
	Source       string
}

// CommunicationInput records one email exchange on a CRM lead. MessageID is
// stored on the communication so later passes can dedup against it.
type CommunicationInput struct {
	LeadID    string
	MessageID string
	Subject   string
	Content   string
	Sender    string
	Recipient string
	SentAt    time.Time
	Direction string
}

// ExpenseInput creates a purchase/expense document in the CRM.
type ExpenseInput struct {
	SupplierID    string
	InvoiceNumber string
	InvoiceDate   string
	Total         float64
	Currency      string
	LineItems     []ExpenseLineItem
	AttachmentURL string
	PostingDate   time.Time
}

type ExpenseLineItem struct {
	Description string
	Quantity    float64
	Rate        float64
	Amount      float64
}
