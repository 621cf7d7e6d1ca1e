package mailtriage_errors

import "errors"

var (
	// Transient AI provider failures. These must abort the current batch:
	// every remaining email would be mis-classified as irrelevant otherwise.
	ErrAIRateLimited    = errors.New("ai provider rate limited")
	ErrAIAuthentication = errors.New("ai provider authentication failed")
	ErrAIUnavailable    = errors.New("ai provider unavailable")

	ErrEmailNotFound   = errors.New("email not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownDoctype  = errors.New("unknown doctype")
	ErrCRMNotFound     = errors.New("crm record not found")
	ErrEventsDisabled  = errors.New("events publisher not configured")
	ErrBackfillRunning = errors.New("a backfill run is already in progress")
)

// IsTransientAIError reports whether err belongs to the provider-failure
// class that must propagate out of the classifier.
func IsTransientAIError(err error) bool {
	return errors.Is(err, ErrAIRateLimited) ||
		errors.Is(err, ErrAIAuthentication) ||
		errors.Is(err, ErrAIUnavailable)
}
