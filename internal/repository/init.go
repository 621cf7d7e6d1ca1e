package repository

import (
	"gorm.io/gorm"

	"github.com/craftworks/mailtriage/config"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/models"
	"github.com/craftworks/mailtriage/services/storage"
)

type Repositories struct {
	EmailRepository           interfaces.EmailRepository
	EmailAttachmentRepository interfaces.EmailAttachmentRepository
	ProcessingLogRepository   interfaces.ProcessingLogRepository

	// Shared with services that read attachment payloads back
	StorageService interfaces.StorageService
}

func InitRepositories(db *gorm.DB, storageConfig *config.StorageConfig, maxRetries int) *Repositories {
	attachmentStorage := storage.NewS3StorageService(
		storageConfig.AWSRegion,
		storageConfig.AccessKeyID,
		storageConfig.AccessKeySecret,
		storageConfig.AttachmentBucket,
		storageConfig.CDNDomain,
	)

	return &Repositories{
		EmailRepository:           NewEmailRepository(db, maxRetries),
		EmailAttachmentRepository: NewEmailAttachmentRepository(db, attachmentStorage),
		ProcessingLogRepository:   NewProcessingLogRepository(db),
		StorageService:            attachmentStorage,
	}
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Email{},
		&models.EmailAttachment{},
		&models.ProcessingLog{},
	)
}
