package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docintel-go/internal/api/handler"
	"docintel-go/internal/api/router"
	"docintel-go/internal/config"
	"docintel-go/internal/logger"
	"docintel-go/internal/nlp"
	"docintel-go/internal/outbox"
	"docintel-go/internal/processor"
	"docintel-go/internal/storage"
	"docintel-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzerolog "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"
)

var version = "1.0.0" //nolint:gochecknoglobals

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("loading config")
	}
	closer, err := logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialising logger")
	}
	defer closer.Close()
	hlog.SetLogger(hertzzerolog.From(logger.Logger))
	if cfg.Logger.Level == "debug" {
		hlog.SetLevel(hlog.LevelDebug)
	}
	logger.Info().Str("version", version).Msg("config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialising tracing")
	}

	store, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialising storage")
	}
	defer store.Close()

	model, err := nlp.Load(cfg.NLP, store.VectorCache())
	if err != nil {
		logger.Fatal().Err(err).Msg("loading language model")
	}

	proc, err := processor.NewFromConfig(ctx, cfg, model, store)
	if err != nil {
		logger.Fatal().Err(err).Msg("building processor")
	}

	var relay *outbox.MessageRelay
	if store.MySQL != nil && store.RabbitMQ != nil {
		relay = outbox.NewMessageRelay(store.MySQL.DB(), store.RabbitMQ, cfg.RabbitMQ)
		relay.Start()
		if cfg.RabbitMQ.AuditQueue != "" {
			if err := store.RabbitMQ.StartConsumer(ctx, cfg.RabbitMQ.AuditQueue, cfg.RabbitMQ.PrefetchCount, outbox.AuditHandler); err != nil {
				logger.Error().Err(err).Msg("audit consumer not started")
			}
		}
	} else {
		logger.Info().Msg("outbox relay disabled, mysql and rabbitmq are both required")
	}

	h := router.NewServer(cfg.Server)
	router.RegisterRoutes(h, &router.Handlers{
		Resumes:     handler.NewResumeHandler(proc, store),
		Documents:   handler.NewDocumentHandler(proc, store),
		Professions: handler.NewProfessionHandler(proc),
		Settings:    handler.NewSettingsHandler(store, proc.Settings().DefaultExtraction),
	}, cfg.Auth.AdminKeys)

	go func() {
		logger.Info().Str("address", cfg.Server.Address).Msg("http server starting")
		if err := h.Run(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
		config.GetDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if relay != nil {
		relay.Stop()
	}
	cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("flushing traces")
	}
	logger.Info().Msg("bye")
}
