package main

import (
	"context"

	hallshandler "hallbook/internal/halls/handler"
	hallsrepo "hallbook/internal/halls/repository"
	hallssvc "hallbook/internal/halls/service"
	requestshandler "hallbook/internal/requests/handler"
	requestsrepo "hallbook/internal/requests/repository"
	requestssvc "hallbook/internal/requests/service"
	"hallbook/internal/requests/validator"
	"hallbook/pkg/app"
	"hallbook/pkg/config"
	"hallbook/pkg/kafka"
	kafka_config "hallbook/pkg/kafka/config"
)

const ServiceName = "hallbook"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting hall booking service")

	hallRepo := hallsrepo.NewMongoHallRepository(cfg)
	requestRepo := requestsrepo.NewMongoRequestRepository(cfg)

	hallService := hallssvc.NewHallService(hallRepo, cfg)

	notifier, producer := initNotifier(cfg)
	sweeper := requestssvc.NewSweeper(requestRepo, hallRepo, cfg)

	bookingService := requestssvc.NewBookingService(
		requestRepo,
		hallRepo,
		validator.NewRequestValidator(cfg.Log),
		requestssvc.NewTokenIssuer(cfg.TokenTTL),
		notifier,
		sweeper,
		cfg,
	)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeper.Start(sweepCtx)
	cfg.Log.Info("Cleanup scheduler started", "interval", cfg.CleanupInterval)

	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown(stopSweeper)
	if producer != nil {
		serverApp.OnShutdown(func() {
			if err := producer.Close(); err != nil {
				cfg.Log.Error("Failed to close Kafka producer", "error", err)
			}
		})
	}
	serverApp.SetApp(
		hallshandler.NewHallHandler(hallService, cfg.Log),
		requestshandler.NewRequestHandler(bookingService, cfg.Log),
		requestshandler.NewApprovalHandler(bookingService, cfg.Log),
	)
	serverApp.Run()
}

// initNotifier wires the Kafka notifier when notifications are enabled.
// A broken Kafka setup degrades to the noop notifier instead of blocking
// startup; booking still works, only delivery is lost.
func initNotifier(cfg *config.Config) (requestssvc.Notifier, *kafka.Producer) {
	if !cfg.NotificationsEnabled {
		cfg.Log.Info("Notifications disabled, events will be dropped")
		return requestssvc.NewNoopNotifier(), nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Error("Invalid Kafka configuration, notifications disabled", "error", err)
		return requestssvc.NewNoopNotifier(), nil
	}

	producer, err := kafka.NewProducer(kafkaCfg, cfg.NotificationTopic, cfg.NotificationDLQTopic)
	if err != nil {
		cfg.Log.Error("Failed to create Kafka producer, notifications disabled", "error", err)
		return requestssvc.NewNoopNotifier(), nil
	}

	cfg.Log.Info("Kafka notifier initialized", "topic", cfg.NotificationTopic)
	return requestssvc.NewKafkaNotifier(producer, cfg.ActionBaseURL, ServiceName), producer
}
