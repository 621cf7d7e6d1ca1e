package classifier

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/craftworks/mailtriage/dto"
	mailtriage_errors "github.com/craftworks/mailtriage/errors"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/models"
	"github.com/craftworks/mailtriage/internal/tracing"
)

const generalSystemPrompt = `You classify business emails for a services company.
Respond with a single JSON object:
{"classification": one of [new_lead, client_message, staff_message, meeting_confirmed, quote_sent, irrelevant],
 "contact_name": string, "contact_email": string, "contact_phone": string,
 "company": string, "meeting_date": string, "quote_amount": number, "summary": string}
Omit fields you cannot extract.`

// GeneralClassifier assigns one of the six non-invoice intent tags.
type GeneralClassifier struct {
	ai  interfaces.AIClient
	log logger.Logger
}

func NewGeneralClassifier(ai interfaces.AIClient, log logger.Logger) *GeneralClassifier {
	return &GeneralClassifier{
		ai:  ai,
		log: log,
	}
}

func (c *GeneralClassifier) Classify(ctx context.Context, email *models.Email) (*dto.ClassificationResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GeneralClassifier.Classify")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEntity(span, email.ID)

	body := email.BodyPlain
	if body == "" {
		body = email.BodyHTML
	}

	prompt := buildEmailPrompt(email, ExtractNewMessage(body))

	response, err := c.ai.Complete(ctx, dto.CompletionRequest{
		System:   generalSystemPrompt,
		Prompt:   prompt,
		JSONMode: true,
	})
	if err != nil {
		// Transient provider failures must reach the caller so the batch
		// aborts instead of marking everything irrelevant.
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "classification request failed")
	}

	result, ok := parseClassification(response.Content)
	if !ok {
		// Malformed output is expected and recoverable
		c.log.Warnf("unparsable classifier response for email %s, degrading to irrelevant", email.ID)
		span.SetTag("degraded", true)
		return &dto.ClassificationResult{Classification: enum.ClassificationIrrelevant}, nil
	}

	span.SetTag("classification", result.Classification.String())
	return result, nil
}

func (c *GeneralClassifier) ExtractNewMessage(body string) string {
	return ExtractNewMessage(body)
}

func buildEmailPrompt(email *models.Email, body string) string {
	var b strings.Builder
	b.WriteString("Subject: " + email.Subject + "\n")
	b.WriteString("From: " + email.SenderName + " <" + email.Sender + ">\n")
	b.WriteString("To: " + email.Recipient + "\n")
	if email.EmailDate != nil {
		b.WriteString("Date: " + email.EmailDate.Format("2006-01-02 15:04") + "\n")
	}
	b.WriteString("\n" + body)
	return b.String()
}

type rawClassification struct {
	Classification string  `json:"classification"`
	ContactName    string  `json:"contact_name"`
	ContactEmail   string  `json:"contact_email"`
	ContactPhone   string  `json:"contact_phone"`
	Company        string  `json:"company"`
	MeetingDate    string  `json:"meeting_date"`
	QuoteAmount    float64 `json:"quote_amount"`
	Summary        string  `json:"summary"`
}

// parseClassification decodes a model response, tolerating markdown fences.
func parseClassification(content string) (*dto.ClassificationResult, bool) {
	cleaned := stripCodeFence(content)

	var raw rawClassification
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, false
	}
	if raw.Classification == "" {
		return nil, false
	}

	return &dto.ClassificationResult{
		Classification: enum.DecodeEmailClassification(raw.Classification),
		ContactName:    raw.ContactName,
		ContactEmail:   strings.ToLower(strings.TrimSpace(raw.ContactEmail)),
		ContactPhone:   raw.ContactPhone,
		Company:        raw.Company,
		MeetingDate:    raw.MeetingDate,
		QuoteAmount:    raw.QuoteAmount,
		Summary:        raw.Summary,
	}, true
}

func stripCodeFence(content string) string {
	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
	}
	return strings.TrimSpace(cleaned)
}

// IsTransient reports whether a classifier error belongs to the provider
// failure class that aborts the current batch.
func IsTransient(err error) bool {
	return mailtriage_errors.IsTransientAIError(err)
}
