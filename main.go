package main

import (
	"os"
	"os/signal"
	"syscall"

	"spamguard/internal/config"
	"spamguard/internal/repositories"
	"spamguard/internal/services"
	"spamguard/pkg/bert"
	"spamguard/pkg/logger"
	"spamguard/pkg/rabbitmq"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load(viper.New())
	if err != nil {
		logger.NewLogger("info").Fatal("invalid configuration", zap.Error(err))
	}
	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()

	// --- Account store ---
	var accountRepo repositories.AccountRepository
	if cfg.DBDriver == "memory" {
		log.Warn("using in-memory account store; accounts are lost on restart")
		accountRepo = repositories.NewMockAccountRepository()
	} else {
		db, err := repositories.OpenDatabase(cfg.DBDriver, cfg.DatabaseDSN, log)
		if err != nil {
			log.Fatal("failed to open database", zap.String("driver", cfg.DBDriver), zap.Error(err))
		}
		accountRepo = repositories.NewGORMAccountRepository(db)
	}

	// --- Events (optional) ---
	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.RabbitMQQueue}, log)
		if err != nil {
			log.Fatal("failed to initialize RabbitMQ client", zap.Error(err))
		}
		defer mqClient.Close()
		events = mqClient

		if err := mqClient.ConsumeEvents(rabbitmq.AuditHandler(log.Named("audit"))); err != nil {
			log.Error("failed to start event consumer", zap.Error(err))
		}
	}

	// --- Classification resource: loaded once, fatal on failure ---
	resource, err := services.LoadClassificationResource(services.ResourceOptions{
		Fetch: bert.FetchOptions{
			HubURL:   cfg.ModelHubURL,
			Repo:     cfg.ModelRepo,
			Revision: cfg.ModelRevision,
			CacheDir: cfg.ModelDir,
			Token:    cfg.ModelHubToken,
			Timeout:  cfg.ModelDownloadTimeout,
			Offline:  cfg.ModelOffline,
		},
		Device:    cfg.ModelDevice,
		MaxLength: cfg.ModelMaxLength,
	}, log)
	if err != nil {
		log.Fatal("failed to load classification model", zap.Error(err))
	}

	// --- Services and app ---
	accountService := services.NewAccountService(accountRepo, events, cfg.BcryptCost, log)
	classifyService := services.NewClassifyService(resource, events, log)
	app := NewApp(accountService, classifyService, resource, log)

	log.Info("starting server", zap.String("addr", cfg.AppPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-quit
	log.Info("shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error("error during fiber shutdown", zap.Error(err))
	}
	log.Info("server gracefully stopped")
}
