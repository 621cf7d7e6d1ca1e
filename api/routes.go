package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/craftworks/mailtriage/api/handlers"
	"github.com/craftworks/mailtriage/api/middleware"
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/repository"
	"github.com/craftworks/mailtriage/internal/tracing"
	"github.com/craftworks/mailtriage/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, s *services.Services, repos *repository.Repositories, apikey string, log logger.Logger) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	// Unauthenticated probes
	r.GET("/health", handlers.HealthCheck)
	r.GET("/stats", handlers.Stats(repos.EmailRepository))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-MAILTRIAGE-API-KEY",
		ValidAPIKey: apikey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	{
		api.POST("/process", handlers.Process(s.EmailProcessor, log))
		api.POST("/backfill", handlers.Backfill(s.EmailProcessor))
		api.POST("/fetch", handlers.Fetch(s.EmailProcessor, log))
	}
}
