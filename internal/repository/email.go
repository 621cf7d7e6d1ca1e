package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	mailtriage_errors "github.com/craftworks/mailtriage/errors"
	"github.com/craftworks/mailtriage/dto"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/models"
	"github.com/craftworks/mailtriage/internal/tracing"
	"github.com/craftworks/mailtriage/internal/utils"
)

type emailRepository struct {
	db         *gorm.DB
	maxRetries int
}

func NewEmailRepository(db *gorm.DB, maxRetries int) interfaces.EmailRepository {
	return &emailRepository{
		db:         db,
		maxRetries: maxRetries,
	}
}

func (r *emailRepository) Exists(ctx context.Context, messageID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Exists")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	messageID = strings.Trim(messageID, "<>")

	var count int64
	err := r.db.WithContext(ctx).Model(&models.Email{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	return count > 0, nil
}

// Create inserts the email. Inserting a duplicate message_id is a no-op that
// returns the already-stored row's id.
func (r *emailRepository) Create(ctx context.Context, email *models.Email) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if email == nil {
		return "", mailtriage_errors.ErrInvalidInput
	}

	if email.MessageID != "" {
		email.MessageID = strings.Trim(email.MessageID, "<>")
	}
	if email.MessageID == "" {
		return "", mailtriage_errors.ErrInvalidInput
	}

	// Check if email already exists before creating
	existingEmail := &models.Email{}
	err := r.db.WithContext(ctx).
		Where("message_id = ?", email.MessageID).
		First(existingEmail).Error

	if err == nil {
		span.SetTag("duplicate", true)
		return existingEmail.ID, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		tracing.TraceErr(span, err)
		return "", err
	}

	result := r.db.WithContext(ctx).Create(email)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return "", result.Error
	}

	return email.ID, nil
}

func (r *emailRepository) GetByID(ctx context.Context, id string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var email models.Email
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) GetByMessageID(ctx context.Context, messageID string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	messageID = strings.Trim(messageID, "<>")

	var email models.Email
	if err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

// GetUnprocessed selects the pending queue: unprocessed rows of the doctype
// whose retry count is still below the cap, ordered by email_date.
func (r *emailRepository) GetUnprocessed(ctx context.Context, doctype enum.Doctype, limit int, since *time.Time, order interfaces.SortOrder) ([]*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetUnprocessed")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("doctype", doctype.String())

	query := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Where("doctype = ?", doctype).
		Where("retry_count < ?", r.maxRetries)

	if since != nil {
		query = query.Where("email_date >= ?", *since)
	}

	var emails []*models.Email
	err := query.
		Order("email_date " + sortDirection(order)).
		Limit(limit).
		Find(&emails).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return emails, nil
}

// GetByDate ignores processed and retry_count. Used only for forced
// re-inspection, never for normal dispatch.
func (r *emailRepository) GetByDate(ctx context.Context, since time.Time, until *time.Time, limit int, order interfaces.SortOrder) ([]*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByDate")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	query := r.db.WithContext(ctx).Where("email_date >= ?", since)
	if until != nil {
		query = query.Where("email_date <= ?", *until)
	}

	var emails []*models.Email
	err := query.
		Order("email_date " + sortDirection(order)).
		Limit(limit).
		Find(&emails).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return emails, nil
}

// MarkProcessed sets the terminal state and clears any previous error.
func (r *emailRepository) MarkProcessed(ctx context.Context, id string, classification enum.EmailClassification, data models.JSONMap) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.MarkProcessed")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	now := utils.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed":           true,
			"processed_at":        now,
			"classification":      classification,
			"classification_data": data,
			"error_message":       "",
			"updated_at":          now,
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return mailtriage_errors.ErrEmailNotFound
	}
	return nil
}

// MarkError records the failure and increments retry_count. It never sets
// processed; the row stays eligible for retry until the cap.
func (r *emailRepository) MarkError(ctx context.Context, id string, message string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.MarkError")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	now := utils.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Email{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"error_message": message,
			"retry_count":   gorm.Expr("retry_count + 1"),
			"last_retry_at": now,
			"updated_at":    now,
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return mailtriage_errors.ErrEmailNotFound
	}
	return nil
}

// LatestEmailDate is the realtime fetch high-water mark for a folder.
func (r *emailRepository) LatestEmailDate(ctx context.Context, mailbox, folder string) (*time.Time, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.LatestEmailDate")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var email models.Email
	err := r.db.WithContext(ctx).
		Where("mailbox = ? AND folder = ?", mailbox, folder).
		Order("email_date DESC").
		First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return email.EmailDate, nil
}

func (r *emailRepository) GetStats(ctx context.Context) (*dto.StagingStats, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetStats")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	stats := &dto.StagingStats{
		ByClassification: map[string]int64{},
		ByDoctype:        map[string]int64{},
	}

	model := r.db.WithContext(ctx).Model(&models.Email{})

	if err := model.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if err := model.Session(&gorm.Session{}).Where("processed = ?", true).Count(&stats.Processed).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if err := model.Session(&gorm.Session{}).
		Where("processed = ? AND retry_count < ?", false, r.maxRetries).
		Count(&stats.Pending).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if err := model.Session(&gorm.Session{}).
		Where("processed = ? AND retry_count >= ?", false, r.maxRetries).
		Count(&stats.FailedBeyondCap).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	type countRow struct {
		Key   string
		Count int64
	}

	var byClassification []countRow
	err := r.db.WithContext(ctx).Model(&models.Email{}).
		Select("classification as key, count(*) as count").
		Where("classification <> ''").
		Group("classification").
		Scan(&byClassification).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	for _, row := range byClassification {
		stats.ByClassification[row.Key] = row.Count
	}

	var byDoctype []countRow
	err = r.db.WithContext(ctx).Model(&models.Email{}).
		Select("doctype as key, count(*) as count").
		Group("doctype").
		Scan(&byDoctype).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	for _, row := range byDoctype {
		stats.ByDoctype[row.Key] = row.Count
	}

	return stats, nil
}

func sortDirection(order interfaces.SortOrder) string {
	if order == interfaces.OrderDesc {
		return "DESC"
	}
	return "ASC"
}
