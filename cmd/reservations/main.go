package main

import (
	"context"

	"rentcore/internal/bootstrap"
	"rentcore/internal/notifications"
	"rentcore/internal/reservations/handler"
	"rentcore/internal/sweeper"
	"rentcore/pkg/app"
	"rentcore/pkg/clock"
	"rentcore/pkg/config"
	"rentcore/pkg/kafka"
	kafka_middleware "rentcore/pkg/kafka/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	if cfg.UsesMongo() {
		cfg.SetMongo()
	}

	cfg.Log.Info("Starting Reservations service")
	stack, err := bootstrap.Build(context.Background(), cfg, clock.Real())
	if err != nil {
		cfg.Log.Fatal("Failed to initialize services", "error", err)
	}

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewReservationHandler(stack.Reservations, stack.ReservationValidator, cfg.Log))

	serverApp.AddWorker("hold-sweeper", sweeper.New(stack.ReservationRepo, stack.Reservations, stack.Clock, cfg))
	serverApp.AddWorker("notification-relay", notifications.NewRelay(stack.ReservationRepo, publisher(cfg, serverApp), cfg))

	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

// publisher returns the Kafka producer for reservation events, or a log-only
// publisher when Kafka is disabled.
func publisher(cfg *config.Config, serverApp *app.Application) notifications.Publisher {
	if !cfg.Kafka.Enabled {
		cfg.Log.Info("Kafka disabled, reservation events go to the log")
		return notifications.NewLogPublisher(cfg.Log)
	}

	producer, err := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ReservationEvents, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	if cfg.Kafka.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(metrics.ProducerMiddleware())
	}

	serverApp.OnShutdown(func() {
		cfg.Log.Info("Kafka producer stats", "metrics", metrics.Snapshot())
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	})
	return producer
}
