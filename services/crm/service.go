package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/craftworks/mailtriage/config"
	"github.com/craftworks/mailtriage/dto"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/tracing"
)

const requestTimeout = 30 * time.Second

// crmService talks to the CRM/ERP REST API. All lookups treat a 404 as
// "not found" rather than an error.
type crmService struct {
	cfg    *config.CRMConfig
	client *http.Client
}

func NewCRMService(cfg *config.CRMConfig) interfaces.CRMGateway {
	return &crmService{
		cfg: cfg,
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

func (s *crmService) CommunicationExists(ctx context.Context, messageID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "crmService.CommunicationExists")
	defer span.Finish()
	tracing.TagComponentService(span)

	var response struct {
		Count int `json:"count"`
	}
	query := url.Values{"message_id": {messageID}}
	if err := s.get(ctx, span, "/api/communications/count?"+query.Encode(), &response); err != nil {
		return false, err
	}
	return response.Count > 0, nil
}

func (s *crmService) CreateLead(ctx context.Context, lead dto.LeadInput) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "crmService.CreateLead")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.LogObjectAsJson(span, "lead", lead)

	payload := map[string]interface{}{
		"name":          lead.Name,
		"contact_email": lead.ContactEmail,
		"contact_phone": lead.ContactPhone,
		"company":       lead.Company,
		"source":        lead.Source,
	}
	return s.create(ctx, span, "/api/leads", payload)
}

func (s *crmService) FindLeadByEmail(ctx context.Context, email string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "crmService.FindLeadByEmail")
	defer span.Finish()
	tracing.TagComponentService(span)

	var response struct {
		ID string `json:"id"`
	}
	query := url.Values{"contact_email": {email}}
	err := s.get(ctx, span, "/api/leads/lookup?"+query.Encode(), &response)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return response.ID, nil
}

func (s *crmService) CreateCommunication(ctx context.Context, comm dto.CommunicationInput) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "crmService.CreateCommunication")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEntity(span, comm.LeadID)

	payload := map[string]interface{}{
		"lead_id":    comm.LeadID,
		"message_id": comm.MessageID,
		"subject":    comm.Subject,
		"content":    comm.Content,
		"sender":     comm.Sender,
		"recipient":  comm.Recipient,
		"sent_at":    comm.SentAt.Format(time.RFC3339),
		"direction":  comm.Direction,
	}
	return s.create(ctx, span, "/api/communications", payload)
}

func (s *crmService) CountCommunications(ctx context.Context, leadID string) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "crmService.CountCommunications")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEntity(span, leadID)

	var response struct {
		Count int `json:"count"`
	}
	query := url.Values{"lead_id": {leadID}}
	if err := s.get(ctx, span, "/api/communications/count?"+query.Encode(), &response); err != nil {
		return 0, err
	}
	return response.Count, nil
}

func (s *crmService) UpdateLeadStatus(ctx context.Context, leadID, status string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "crmService.UpdateLeadStatus")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEntity(span, leadID)
	span.SetTag("status", status)

	payload := map[string]interface{}{
		"status": status,
	}
	return s.send(ctx, span, "PATCH", "/api/leads/"+leadID, payload, nil)
}

func (s *crmService) RegenerateLeadSummary(ctx context.Context, leadID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "crmService.RegenerateLeadSummary")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEntity(span, leadID)

	return s.send(ctx, span, "POST", "/api/leads/"+leadID+"/regenerateSummary", nil, nil)
}

func (s *crmService) FindOrCreateSupplier(ctx context.Context, name string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "crmService.FindOrCreateSupplier")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("supplier", name)

	var response struct {
		ID string `json:"id"`
	}
	query := url.Values{"name": {name}}
	err := s.get(ctx, span, "/api/suppliers/lookup?"+query.Encode(), &response)
	if err == nil {
		return response.ID, nil
	}
	if !isNotFound(err) {
		return "", err
	}

	return s.create(ctx, span, "/api/suppliers", map[string]interface{}{"name": name})
}

func (s *crmService) CreateExpense(ctx context.Context, expense dto.ExpenseInput) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "crmService.CreateExpense")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagEntity(span, expense.SupplierID)

	lineItems := make([]map[string]interface{}, 0, len(expense.LineItems))
	for _, item := range expense.LineItems {
		lineItems = append(lineItems, map[string]interface{}{
			"description": item.Description,
			"quantity":    item.Quantity,
			"rate":        item.Rate,
			"amount":      item.Amount,
		})
	}

	payload := map[string]interface{}{
		"supplier_id":    expense.SupplierID,
		"invoice_number": expense.InvoiceNumber,
		"invoice_date":   expense.InvoiceDate,
		"total":          expense.Total,
		"currency":       expense.Currency,
		"line_items":     lineItems,
		"attachment_url": expense.AttachmentURL,
		"posting_date":   expense.PostingDate.Format("2006-01-02"),
	}
	return s.create(ctx, span, "/api/expenses", payload)
}

type crmNotFoundError struct {
	path string
}

func (e *crmNotFoundError) Error() string {
	return "crm resource not found: " + e.path
}

func isNotFound(err error) bool {
	var notFound *crmNotFoundError
	return errors.As(err, &notFound)
}

func (s *crmService) create(ctx context.Context, span opentracing.Span, path string, payload any) (string, error) {
	var response struct {
		ID string `json:"id"`
	}
	if err := s.send(ctx, span, "POST", path, payload, &response); err != nil {
		return "", err
	}
	if response.ID == "" {
		err := fmt.Errorf("crm create returned no id for %s", path)
		tracing.TraceErr(span, err)
		return "", err
	}
	return response.ID, nil
}

func (s *crmService) get(ctx context.Context, span opentracing.Span, path string, response any) error {
	return s.send(ctx, span, "GET", path, nil, response)
}

func (s *crmService) send(ctx context.Context, span opentracing.Span, method, path string, payload any, response any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			tracing.TraceErr(span, err)
			return errors.Wrap(err, "failed to marshal payload")
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.URL+path, body)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.cfg.APIKey)
	req.Header.Set("X-API-SECRET", s.cfg.APISecret)
	tracing.InjectSpanContextIntoHTTPRequest(req, span)

	resp, err := s.client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode == http.StatusNotFound {
		return &crmNotFoundError{path: path}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("crm request %s %s failed with status code %d: %s", method, path, resp.StatusCode, string(respBody))
		tracing.TraceErr(span, err)
		return err
	}

	if response != nil {
		if err := json.Unmarshal(respBody, response); err != nil {
			tracing.TraceErr(span, err)
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
