package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	mailtriage_errors "github.com/craftworks/mailtriage/errors"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/models"
	"github.com/craftworks/mailtriage/internal/tracing"
)

type processingLogRepository struct {
	db *gorm.DB
}

func NewProcessingLogRepository(db *gorm.DB) interfaces.ProcessingLogRepository {
	return &processingLogRepository{
		db: db,
	}
}

func (r *processingLogRepository) Add(ctx context.Context, entry *models.ProcessingLog) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processingLogRepository.Add")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if entry == nil || entry.EmailID == "" {
		return "", mailtriage_errors.ErrInvalidInput
	}

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	return entry.ID, nil
}

func (r *processingLogRepository) ListByEmail(ctx context.Context, emailID string) ([]*models.ProcessingLog, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "processingLogRepository.ListByEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var entries []*models.ProcessingLog
	err := r.db.WithContext(ctx).
		Where("email_id = ?", emailID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return entries, nil
}
