package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/craftworks/mailtriage/dto"
	mailtriage_errors "github.com/craftworks/mailtriage/errors"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/tracing"
	"github.com/craftworks/mailtriage/internal/utils"
	"github.com/craftworks/mailtriage/services/processor"
)

type processRequest struct {
	Doctype string `json:"doctype" binding:"required"`
	Limit   int    `json:"limit"`
}

type backfillRequest struct {
	Doctype string `json:"doctype" binding:"required"`
	Days    int    `json:"days" binding:"required,min=1"`
	DryRun  bool   `json:"dry_run"`
}

// Process triggers a background realtime cycle and returns a run reference.
func Process(emailProcessor *processor.EmailProcessor, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "POST /v1/process", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req processRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		doctype, ok := enum.DecodeDoctype(req.Doctype)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown doctype: " + req.Doctype})
			return
		}

		runRef := uuid.New().String()
		span.SetTag("run_ref", runRef)

		// Detached from the request context; the run outlives the response
		go func() {
			defer tracing.RecoverAndLogToJaeger(log)
			if _, err := emailProcessor.ProcessPending(context.Background(), doctype, req.Limit); err != nil {
				log.Errorf("background process %s for %s failed: %v", runRef, doctype, err)
			}
		}()

		c.JSON(http.StatusAccepted, gin.H{"run_ref": runRef})
	}
}

// Backfill runs a historical window synchronously. Long windows belong on
// the CLI; this endpoint exists for operational re-runs.
func Backfill(emailProcessor *processor.EmailProcessor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "POST /v1/backfill", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req backfillRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		doctype, ok := enum.DecodeDoctype(req.Doctype)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown doctype: " + req.Doctype})
			return
		}

		stats, err := emailProcessor.Backfill(ctx, dto.BackfillRequest{
			Doctype: doctype,
			Since:   utils.Now().Add(-time.Duration(req.Days) * 24 * time.Hour),
			DryRun:  req.DryRun,
		})
		if err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, mailtriage_errors.ErrBackfillRunning) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "backfill run failed"})
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}

// Fetch stages new mail for both pipelines without processing it. Staged
// rows are picked up by the next scheduled cycle.
func Fetch(emailProcessor *processor.EmailProcessor, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "POST /v1/fetch", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		results := gin.H{}
		for _, doctype := range []enum.Doctype{enum.DoctypeLead, enum.DoctypeExpense} {
			stats, err := emailProcessor.Fetch(ctx, doctype)
			if err != nil {
				tracing.TraceErr(span, err)
				log.Errorf("fetch for %s failed: %v", doctype, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch for " + doctype.String() + " failed"})
				return
			}
			results[doctype.String()] = stats
		}

		c.JSON(http.StatusOK, results)
	}
}
