package main

import (
	"context"
	"errors"

	"rentcore/internal/bootstrap"
	"rentcore/internal/payments/consumer"
	"rentcore/internal/payments/handler"
	"rentcore/pkg/app"
	"rentcore/pkg/clock"
	"rentcore/pkg/config"
	"rentcore/pkg/contracts"
	"rentcore/pkg/kafka"
	kafka_middleware "rentcore/pkg/kafka/middleware"
)

const ServiceName = "payments"

func main() {
	cfg := config.Load(ServiceName)
	if cfg.StorageDriver != config.DriverMongo {
		// payments mutate reservations; a private memory store would never see them
		cfg.Log.Fatal("Payments service requires STORAGE_DRIVER=mongo")
	}
	cfg.SetMongo()

	cfg.Log.Info("Starting Payments service")
	stack, err := bootstrap.Build(context.Background(), cfg, clock.Real())
	if err != nil {
		cfg.Log.Fatal("Failed to initialize services", "error", err)
	}

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewPaymentHandler(stack.Payments, cfg.PaymentEventsSecret, cfg.Log))
	if cfg.PaymentEventsSecret != "" {
		cfg.Log.Info("Payment event signature verification enabled")
	}

	if cfg.Kafka.Enabled {
		addEventConsumer(cfg, serverApp, consumer.NewEventHandler(stack.Payments, cfg.Log))
	}

	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.Run()
}

func addEventConsumer(cfg *config.Config, serverApp *app.Application, events *consumer.EventHandler) {
	c, err := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.PaymentEvents,
		cfg.Kafka.PaymentConsumerGroup,
		cfg.Kafka.Topics.PaymentDLQ,
		events.Handle,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	if cfg.Kafka.EnableMiddleware {
		c.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		c.Use(metrics.ConsumerMiddleware())
	}

	serverApp.AddWorker("payment-events-consumer", contracts.WorkerFunc(func(ctx context.Context) {
		if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			cfg.Log.Error("Payment events consumer stopped", "error", err)
		}
	}))
	serverApp.OnShutdown(func() {
		cfg.Log.Info("Kafka consumer stats", "metrics", metrics.Snapshot())
		if err := c.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka consumer", "error", err)
		}
	})
}
