package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/alerting"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/api"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/config"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/database"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/framesource"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/kafka"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/livestatus"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/metrics"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/processor"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/runner"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/s3"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/services/detection"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/supervisor"
	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/tracking"
)

const (
	alertDeliveryTimeout = 10 * time.Second
	shutdownTimeout      = 5 * time.Second
)

func setupLogger(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}

func main() {
	// Чтение конфига
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Msg("Main: init...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация базы данных
	db, err := database.New(cfg.Postgres.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	if err := db.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to init schema")
	}
	defer db.Close()

	cache := livestatus.New()
	initial, err := db.GetActiveSources(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load sources")
	}
	cache.LoadInitial(initial)

	// Источники кадров
	minioClient, err := s3.NewMinioClient(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.Secure)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed connect to MinIO")
	}
	sources := framesource.NewRouter()
	sources.Handle("s3", minioClient)
	snapshots := framesource.NewSnapshotOpener(cfg.Detection.Timeout)
	sources.Handle("http", snapshots)
	sources.Handle("https", snapshots)

	detectClient := detection.NewClient(cfg.Detection.Endpoint, cfg.Detection.Timeout)

	// Оповещения
	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AlertTopic)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Kafka producer")
	}
	defer producer.Close()

	dispatcher := alerting.NewDispatcher(producer, cfg.Processing.AlertBuffer, alertDeliveryTimeout)
	go dispatcher.Run(ctx)

	// Команды конфигурации
	consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.CommandTopic)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Kafka consumer")
	}
	defer consumer.Close()
	consumer.StartListening(ctx)

	m := metrics.New()

	r := runner.New(runner.Deps{
		Cache: cache,
		Trackers: tracking.NewRegistry(tracking.Thresholds{
			Proximity: cfg.Processing.ProximityPx,
			Away:      cfg.Processing.AwayPx,
		}),
		Gate:     alerting.NewGate(cfg.Processing.AlertCooldown),
		Notifier: dispatcher,
		Detectors: func(sourceID string) processor.Detector {
			return detectClient.ForSource(sourceID)
		},
		Opener:   sources,
		Store:    db,
		Commands: consumer,
		Metrics:  m,
	}, runner.Settings{
		Loop: supervisor.Settings{
			FrameDelay:      cfg.Processing.FrameDelay,
			ReopenDelay:     cfg.Processing.ReopenDelay,
			SummaryInterval: cfg.Processing.SummaryInterval,
		},
		SyncInterval: cfg.Processing.SyncInterval,
	})

	for _, id := range cache.SourceIDs() {
		r.Start(ctx, id)
	}
	go r.ListenAndRun(ctx)
	go r.Watch(ctx)

	// Настройка роутера
	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(api.NewHandlers(cache), m.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("Starting status API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Status API server failed")
			cancel()
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
	case <-ctx.Done():
	}
	log.Info().Msg("Завершение работы...")
	cancel() // Stop goroutines

	shutdownCtx, release := context.WithTimeout(context.Background(), shutdownTimeout)
	defer release()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Status API shutdown failed")
	}

	r.Wait()
	<-dispatcher.Done()
	log.Info().Msg("Stopped")
}
