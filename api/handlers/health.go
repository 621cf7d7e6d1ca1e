package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/tracing"
)

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Stats returns the aggregate staging-table snapshot.
func Stats(emails interfaces.EmailRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "GET /stats", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		stats, err := emails.GetStats(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}
