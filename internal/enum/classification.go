package enum

type EmailClassification string

const (
	ClassificationNewLead          EmailClassification = "new_lead"
	ClassificationClientMessage    EmailClassification = "client_message"
	ClassificationStaffMessage     EmailClassification = "staff_message"
	ClassificationMeetingConfirmed EmailClassification = "meeting_confirmed"
	ClassificationQuoteSent        EmailClassification = "quote_sent"
	ClassificationSupplierInvoice  EmailClassification = "supplier_invoice"
	ClassificationIrrelevant       EmailClassification = "irrelevant"
)

func (c EmailClassification) String() string {
	return string(c)
}

// DecodeEmailClassification maps a raw model-provided tag onto the closed set.
// Anything unknown decodes to irrelevant.
func DecodeEmailClassification(s string) EmailClassification {
	switch s {
	case "new_lead":
		return ClassificationNewLead
	case "client_message":
		return ClassificationClientMessage
	case "staff_message":
		return ClassificationStaffMessage
	case "meeting_confirmed":
		return ClassificationMeetingConfirmed
	case "quote_sent":
		return ClassificationQuoteSent
	case "supplier_invoice":
		return ClassificationSupplierInvoice
	default:
		return ClassificationIrrelevant
	}
}
