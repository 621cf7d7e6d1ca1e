package dto

import (
	"time"

	"github.com/craftworks/mailtriage/internal/enum"
)

// ProcessingMode distinguishes live processing from historical backfill.
// It is threaded through every Handle call instead of living as shared
// mutable state on the handlers.
type ProcessingMode string

const (
	ModeRealtime ProcessingMode = "realtime"
	ModeBackfill ProcessingMode = "backfill"
)

// ProcessingResult is a handler's verdict for one email.
type ProcessingResult struct {
	Success  bool   `json:"success"`
	Action   string `json:"action"`
	ResultID string `json:"result_id,omitempty"`
	Error    string `json:"error,omitempty"`
	Details  string `json:"details,omitempty"`

	// Retryable marks a failure as transport-level: the email is marked
	// errored (counting toward the retry cap) instead of processed.
	Retryable bool `json:"retryable,omitempty"`
}

// Handler outcome tags
const (
	ActionLeadCreated        = "lead_created"
	ActionCommunicationAdded = "communication_added"
	ActionExpenseCreated     = "expense_created"
	ActionSkippedDuplicate   = "skipped_duplicate"
	ActionSkippedNoLead      = "skipped_no_lead"
	ActionSkipped            = "skipped"
	ActionDedupCheckFailed   = "dedup_check_failed"
	ActionNoHandler          = "no_handler"
	ActionIrrelevant         = "irrelevant"
)

// ProcessingStats summarizes one processor run.
type ProcessingStats struct {
	RunID      string    `json:"run_id"`
	Doctype    string    `json:"doctype"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Fetched    int `json:"fetched"`
	Stored     int `json:"stored"`
	Processed  int `json:"processed"`
	Succeeded  int `json:"succeeded"`
	Skipped    int `json:"skipped"`
	Irrelevant int `json:"irrelevant"`
	Errors     int `json:"errors"`

	Aborted     bool   `json:"aborted,omitempty"`
	AbortReason string `json:"abort_reason,omitempty"`
}

// StagingStats is the aggregate health snapshot served by /stats.
type StagingStats struct {
	Total            int64            `json:"total"`
	Processed        int64            `json:"processed"`
	Pending          int64            `json:"pending"`
	FailedBeyondCap  int64            `json:"failed_beyond_cap"`
	ByClassification map[string]int64 `json:"by_classification"`
	ByDoctype        map[string]int64 `json:"by_doctype"`
}

// BackfillRequest describes a historical run.
type BackfillRequest struct {
	Doctype enum.Doctype
	Since   time.Time
	Until   *time.Time
	Folders []string
	DryRun  bool
}

// ProcessingOutcome is the event published after an email is handled.
type ProcessingOutcome struct {
	RunID          string    `json:"run_id"`
	EmailID        string    `json:"email_id"`
	MessageID      string    `json:"message_id"`
	Doctype        string    `json:"doctype"`
	Classification string    `json:"classification"`
	Action         string    `json:"action"`
	ResultID       string    `json:"result_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}
