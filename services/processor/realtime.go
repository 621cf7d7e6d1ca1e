package processor

import (
	"context"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/craftworks/mailtriage/dto"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/tracing"
	"github.com/craftworks/mailtriage/internal/utils"
)

// ProcessPending runs one realtime cycle for a doctype: fetch new mail past
// the high-water mark, stage it, then classify and dispatch a bounded batch
// of pending emails. limit <= 0 falls back to the configured batch size.
func (p *EmailProcessor) ProcessPending(ctx context.Context, doctype enum.Doctype, limit int) (*dto.ProcessingStats, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailProcessor.ProcessPending")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("doctype", doctype.String())

	runID := uuid.New().String()
	span.SetTag("run_id", runID)

	stats := &dto.ProcessingStats{
		RunID:     runID,
		Doctype:   doctype.String(),
		StartedAt: utils.Now(),
	}

	if limit <= 0 {
		limit = p.cfg.BatchSize
	}

	folder, err := p.FolderForDoctype(doctype)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	// Fetch failures do not block dispatch: already-staged mail still gets
	// processed this cycle.
	if err := p.fetchAndStage(ctx, folder, stats); err != nil {
		p.log.Warnf("run %s: fetch from %s failed, processing staged mail only: %v", runID, folder, err)
		tracing.TraceErr(span, err)
	}

	emails, err := p.emails.GetUnprocessed(ctx, doctype, limit, nil, interfaces.OrderAsc)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	p.processBatch(ctx, runID, emails, dto.ModeRealtime, stats)

	stats.FinishedAt = utils.Now()
	p.log.Infof("run %s (%s): fetched=%d stored=%d processed=%d succeeded=%d skipped=%d irrelevant=%d errors=%d aborted=%v",
		runID, doctype, stats.Fetched, stats.Stored, stats.Processed, stats.Succeeded, stats.Skipped, stats.Irrelevant, stats.Errors, stats.Aborted)
	return stats, nil
}

// Fetch stages new mail for a doctype without classifying or dispatching it.
// The next processing cycle picks the staged rows up.
func (p *EmailProcessor) Fetch(ctx context.Context, doctype enum.Doctype) (*dto.ProcessingStats, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailProcessor.Fetch")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.SetTag("doctype", doctype.String())

	runID := uuid.New().String()
	span.SetTag("run_id", runID)

	stats := &dto.ProcessingStats{
		RunID:     runID,
		Doctype:   doctype.String(),
		StartedAt: utils.Now(),
	}

	folder, err := p.FolderForDoctype(doctype)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if err := p.fetchAndStage(ctx, folder, stats); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	stats.FinishedAt = utils.Now()
	p.log.Infof("fetch %s (%s): fetched=%d stored=%d", runID, doctype, stats.Fetched, stats.Stored)
	return stats, nil
}

func (p *EmailProcessor) fetchAndStage(ctx context.Context, folder string, stats *dto.ProcessingStats) error {
	since, err := p.highWaterMark(ctx, folder)
	if err != nil {
		return err
	}

	messages, err := p.source.FetchSince(ctx, folder, since)
	if err != nil {
		return err
	}
	stats.Fetched += len(messages)

	stored, err := p.ingestMessages(ctx, messages)
	stats.Stored += stored
	return err
}
