package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/craftworks/mailtriage/config"
	"github.com/craftworks/mailtriage/dto"
	mailtriage_errors "github.com/craftworks/mailtriage/errors"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/tracing"
)

const requestTimeout = 60 * time.Second

type aiService struct {
	cfg    *config.AIConfig
	client *http.Client
}

func NewAIService(cfg *config.AIConfig) interfaces.AIClient {
	return &aiService{
		cfg: cfg,
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

func (s *aiService) Complete(ctx context.Context, request dto.CompletionRequest) (*dto.CompletionResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "aiService.Complete")
	defer span.Finish()
	tracing.TagComponentService(span)

	var response dto.CompletionResponse
	if err := s.post(ctx, span, "/v1/complete", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (s *aiService) ExtractDocument(ctx context.Context, request dto.DocumentExtractionRequest) (*dto.DocumentExtractionResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "aiService.ExtractDocument")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("filename", request.Filename)
	span.SetTag("max_pages", request.MaxPages)

	var response dto.DocumentExtractionResponse
	if err := s.post(ctx, span, "/v1/extractDocument", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (s *aiService) post(ctx context.Context, span opentracing.Span, path string, request any, response any) error {
	payload, err := json.Marshal(request)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.URL+path, bytes.NewBuffer(payload))
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.cfg.APIKey)
	tracing.InjectSpanContextIntoHTTPRequest(req, span)

	resp, err := s.client.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "unable to read response body")
	}

	// Transient provider failures get typed so the processing batch can
	// abort instead of mis-classifying everything that follows.
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		err = errors.Wrapf(mailtriage_errors.ErrAIRateLimited, "status %d: %s", resp.StatusCode, string(body))
		tracing.TraceErr(span, err)
		return err
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		err = errors.Wrapf(mailtriage_errors.ErrAIAuthentication, "status %d: %s", resp.StatusCode, string(body))
		tracing.TraceErr(span, err)
		return err
	case resp.StatusCode >= 500:
		err = errors.Wrapf(mailtriage_errors.ErrAIUnavailable, "status %d: %s", resp.StatusCode, string(body))
		tracing.TraceErr(span, err)
		return err
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		err = fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, string(body))
		tracing.TraceErr(span, err)
		return err
	}

	if err := json.Unmarshal(body, response); err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
