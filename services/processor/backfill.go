package processor

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/craftworks/mailtriage/dto"
	mailtriage_errors "github.com/craftworks/mailtriage/errors"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/tracing"
	"github.com/craftworks/mailtriage/internal/utils"
)

// Backfill runs concurrently with realtime cycles, but never with another
// backfill.
var backfillRunning atomic.Bool

// Backfill replays a historical window through the same pipeline as realtime
// processing. CRM timestamps use each email's original date, summary
// regeneration is suppressed, and dry runs stop after the fetch count.
func (p *EmailProcessor) Backfill(ctx context.Context, req dto.BackfillRequest) (*dto.ProcessingStats, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailProcessor.Backfill")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("doctype", req.Doctype.String())
	span.SetTag("since", req.Since.Format("2006-01-02"))
	span.SetTag("dry_run", req.DryRun)

	if !backfillRunning.CompareAndSwap(false, true) {
		return nil, mailtriage_errors.ErrBackfillRunning
	}
	defer backfillRunning.Store(false)

	runID := uuid.New().String()
	span.SetTag("run_id", runID)

	stats := &dto.ProcessingStats{
		RunID:     runID,
		Doctype:   req.Doctype.String(),
		StartedAt: utils.Now(),
	}

	folders := req.Folders
	if len(folders) == 0 {
		var err error
		folders, err = p.backfillFolders(req.Doctype)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
	}

	for _, folder := range folders {
		messages, err := p.source.FetchSince(ctx, folder, req.Since)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		if req.Until != nil {
			messages = filterUntil(messages, req)
		}
		stats.Fetched += len(messages)

		if req.DryRun {
			continue
		}

		stored, err := p.ingestMessages(ctx, messages)
		stats.Stored += stored
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
	}

	if req.DryRun {
		stats.FinishedAt = utils.Now()
		p.log.Infof("backfill %s dry run (%s): fetched=%d", runID, req.Doctype, stats.Fetched)
		return stats, nil
	}

	emails, err := p.emails.GetUnprocessed(ctx, req.Doctype, -1, &req.Since, interfaces.OrderAsc)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	p.processBatch(ctx, runID, emails, dto.ModeBackfill, stats)

	stats.FinishedAt = utils.Now()
	p.log.Infof("backfill %s (%s): fetched=%d stored=%d processed=%d succeeded=%d skipped=%d irrelevant=%d errors=%d aborted=%v",
		runID, req.Doctype, stats.Fetched, stats.Stored, stats.Processed, stats.Succeeded, stats.Skipped, stats.Irrelevant, stats.Errors, stats.Aborted)
	return stats, nil
}

// backfillFolders widens the lead backfill to sent mail so outbound quotes
// and staff replies land in the history too.
func (p *EmailProcessor) backfillFolders(doctype enum.Doctype) ([]string, error) {
	switch doctype {
	case enum.DoctypeLead:
		return []string{p.imapCfg.LeadsFolder, p.imapCfg.SentFolder}, nil
	case enum.DoctypeExpense:
		return []string{p.imapCfg.ExpenseFolder}, nil
	}
	return nil, mailtriage_errors.ErrUnknownDoctype
}

func filterUntil(messages []*dto.InboundMessage, req dto.BackfillRequest) []*dto.InboundMessage {
	filtered := messages[:0]
	for _, msg := range messages {
		if msg.Date.After(*req.Until) {
			continue
		}
		filtered = append(filtered, msg)
	}
	return filtered
}
