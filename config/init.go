package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/tracing"
)

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:        &AppConfig{},
		Logger:           &logger.Config{},
		Tracing:          &tracing.JaegerConfig{},
		DatabaseConfig:   &DatabaseConfig{},
		StorageConfig:    &StorageConfig{},
		AIConfig:         &AIConfig{},
		CRMConfig:        &CRMConfig{},
		IMAPConfig:       &IMAPConfig{},
		ProcessingConfig: &ProcessingConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading mailtriage config: %v", err)
	}

	return config, nil
}
