package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/craftworks/mailtriage/config"
	"github.com/craftworks/mailtriage/dto"
	"github.com/craftworks/mailtriage/internal/database"
	"github.com/craftworks/mailtriage/internal/enum"
	"github.com/craftworks/mailtriage/internal/logger"
	"github.com/craftworks/mailtriage/internal/repository"
	"github.com/craftworks/mailtriage/internal/tracing"
	"github.com/craftworks/mailtriage/internal/utils"
	"github.com/craftworks/mailtriage/server"
	"github.com/craftworks/mailtriage/services"
)

func main() {
	app := &cli.App{
		Name:  "mailtriage",
		Usage: "email intake and triage pipeline",
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "run the API server with the cron scheduler",
				Action: runServer,
			},
			{
				Name:   "migrate",
				Usage:  "run database migrations and exit",
				Action: runMigrations,
			},
			{
				Name:  "backfill",
				Usage: "replay a historical mailbox window through the pipeline",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Usage: "how far back to fetch", Required: true},
					&cli.StringFlag{Name: "doctype", Usage: "lead or expense", Value: "lead"},
					&cli.BoolFlag{Name: "dry-run", Usage: "fetch and count only, no writes"},
				},
				Action: runBackfill,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(c *cli.Context) error {
	cfg, err := config.InitConfig()
	if err != nil {
		return err
	}

	db, err := connectDatabase(cfg)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(cfg, db)
	if err != nil {
		return err
	}
	return srv.Run()
}

func runMigrations(c *cli.Context) error {
	cfg, err := config.InitConfig()
	if err != nil {
		return err
	}

	db, err := connectDatabase(cfg)
	if err != nil {
		return err
	}

	if err := repository.MigrateDB(db); err != nil {
		return err
	}
	log.Println("Migrations completed")
	return nil
}

func runBackfill(c *cli.Context) error {
	doctype, ok := enum.DecodeDoctype(c.String("doctype"))
	if !ok {
		return fmt.Errorf("unknown doctype: %s", c.String("doctype"))
	}

	cfg, err := config.InitConfig()
	if err != nil {
		return err
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		return err
	}
	defer closer.Close()
	opentracing.SetGlobalTracer(tracer)

	db, err := connectDatabase(cfg)
	if err != nil {
		return err
	}

	repos := repository.InitRepositories(db, cfg.StorageConfig, cfg.ProcessingConfig.MaxRetries)
	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return err
	}

	stats, err := svcs.EmailProcessor.Backfill(context.Background(), dto.BackfillRequest{
		Doctype: doctype,
		Since:   utils.Now().Add(-time.Duration(c.Int("days")) * 24 * time.Hour),
		DryRun:  c.Bool("dry-run"),
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func connectDatabase(cfg *config.Config) (*gorm.DB, error) {
	return database.NewConnection(&database.DatabaseConfig{
		Host:            cfg.DatabaseConfig.Host,
		Port:            cfg.DatabaseConfig.Port,
		User:            cfg.DatabaseConfig.User,
		DBName:          cfg.DatabaseConfig.DBName,
		Password:        cfg.DatabaseConfig.Password,
		MaxConn:         cfg.DatabaseConfig.MaxConn,
		MaxIdleConn:     cfg.DatabaseConfig.MaxIdleConn,
		ConnMaxLifetime: cfg.DatabaseConfig.ConnMaxLifetime,
		LogLevel:        cfg.DatabaseConfig.LogLevel,
		SSLMode:         cfg.DatabaseConfig.SSLMode,
	})
}
