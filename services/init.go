package services

import (
	"github.com/craftworks/mailtriage/config"
	"github.com/craftworks/mailtriage/interfaces"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/repository"
	"github.com/craftworks/mailtriage/services/ai"
	"github.com/craftworks/mailtriage/services/classifier"
	"github.com/craftworks/mailtriage/services/crm"
	"github.com/craftworks/mailtriage/services/events"
	"github.com/craftworks/mailtriage/services/handlers"
	"github.com/craftworks/mailtriage/services/mailsource"
	"github.com/craftworks/mailtriage/services/processor"
)

type Services struct {
	AIClient       interfaces.AIClient
	CRMGateway     interfaces.CRMGateway
	MailSource     interfaces.MailSource
	EventPublisher interfaces.EventPublisher
	EmailProcessor *processor.EmailProcessor
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	aiClient := ai.NewAIService(cfg.AIConfig)
	crmGateway := crm.NewCRMService(cfg.CRMConfig)
	source := mailsource.NewIMAPSource(cfg.IMAPConfig, log)

	// Outcome events are optional; without a broker URL the pipeline runs
	// with audit logging only.
	var publisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		rabbitPublisher, err := events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, log, nil)
		if err != nil {
			return nil, err
		}
		publisher = rabbitPublisher
	}

	generalClassifier := classifier.NewGeneralClassifier(aiClient, log)
	invoiceClassifier := classifier.NewInvoiceClassifier(aiClient, log)

	classifiers := map[enum.Doctype]interfaces.Classifier{
		enum.DoctypeLead:    generalClassifier,
		enum.DoctypeExpense: invoiceClassifier,
	}

	router := handlers.NewRouter(
		handlers.NewLeadHandler(crmGateway, generalClassifier, log),
		handlers.NewExpenseHandler(crmGateway, invoiceClassifier, repos.EmailAttachmentRepository, repos.StorageService, log),
	)

	emailProcessor := processor.NewEmailProcessor(
		repos.EmailRepository,
		repos.EmailAttachmentRepository,
		repos.ProcessingLogRepository,
		classifiers,
		router,
		source,
		publisher,
		cfg.ProcessingConfig,
		cfg.IMAPConfig,
		log,
	)

	return &Services{
		AIClient:       aiClient,
		CRMGateway:     crmGateway,
		MailSource:     source,
		EventPublisher: publisher,
		EmailProcessor: emailProcessor,
	}, nil
}
