package enum

// Doctype identifies the business pipeline an email is routed into.
// It is fixed at ingestion time and never changes afterwards.
type Doctype string

const (
	DoctypeLead    Doctype = "lead"
	DoctypeExpense Doctype = "expense"
)

func (d Doctype) String() string {
	return string(d)
}

func DecodeDoctype(s string) (Doctype, bool) {
	switch s {
	case "lead":
		return DoctypeLead, true
	case "expense":
		return DoctypeExpense, true
	default:
		return "", false
	}
}
