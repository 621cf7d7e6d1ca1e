package config

import (
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/tracing"
)

type AppConfig struct {
	APIPort string `env:"PORT" envDefault:"11333"`
	APIKey  string `env:"API_KEY,required"`

	// Optional; outcome events are disabled when empty
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"POSTGRES_HOST,required"`
	Port            string `env:"POSTGRES_PORT,required"`
	User            string `env:"POSTGRES_USER,required"`
	DBName          string `env:"POSTGRES_DB_NAME,required"`
	Password        string `env:"POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
}

type StorageConfig struct {
	AWSRegion        string `env:"AWS_REGION" envDefault:"eu-west-1"`
	AccessKeyID      string `env:"AWS_ACCESS_KEY_ID,required"`
	AccessKeySecret  string `env:"AWS_ACCESS_KEY_SECRET,required"`
	AttachmentBucket string `env:"BUCKET_NAME_EMAIL_ATTACHMENT" envDefault:"mailtriage-attachments"`
	CDNDomain        string `env:"ATTACHMENT_CDN_DOMAIN"`
}

type AIConfig struct {
	URL    string `env:"AI_API_URL,required"`
	APIKey string `env:"AI_API_KEY,required"`
}

type CRMConfig struct {
	URL       string `env:"CRM_API_URL,required"`
	APIKey    string `env:"CRM_API_KEY,required"`
	APISecret string `env:"CRM_API_SECRET,required"`
}

type IMAPConfig struct {
	Host     string `env:"IMAP_HOST,required"`
	Port     int    `env:"IMAP_PORT" envDefault:"993"`
	Username string `env:"IMAP_USERNAME,required"`
	Password string `env:"IMAP_PASSWORD,required"`

	// Source folders; the folder an email is fetched from fixes its doctype
	LeadsFolder   string `env:"IMAP_LEADS_FOLDER" envDefault:"INBOX"`
	ExpenseFolder string `env:"IMAP_EXPENSE_FOLDER" envDefault:"Invoices"`
	SentFolder    string `env:"IMAP_SENT_FOLDER" envDefault:"Sent"`
}

type ProcessingConfig struct {
	BatchSize  int `env:"PROCESSING_BATCH_SIZE" envDefault:"25"`
	MaxRetries int `env:"PROCESSING_MAX_RETRIES" envDefault:"3"`

	// Overlap subtracted from the high-water mark on realtime fetches;
	// idempotent ingestion absorbs the duplicates.
	FetchOverlapMinutes int `env:"PROCESSING_FETCH_OVERLAP_MINUTES" envDefault:"60"`
}

type Config struct {
	AppConfig        *AppConfig
	Logger           *logger.Config
	Tracing          *tracing.JaegerConfig
	DatabaseConfig   *DatabaseConfig
	StorageConfig    *StorageConfig
	AIConfig         *AIConfig
	CRMConfig        *CRMConfig
	IMAPConfig       *IMAPConfig
	ProcessingConfig *ProcessingConfig
}
