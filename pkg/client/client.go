// Package client owns the process-wide connections to backing services.
package client

import (
	"context"
	"fmt"
	"time"

	"rentcore/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Client struct {
	Mongo *mongo.Client
}

func NewClient() *Client {
	return &Client{}
}

// SetMongo connects and pings the primary. Reservation writes go through
// multi-document transactions, so a standalone server without a replica set
// will connect here but fail on the first transition.
func (c *Client) SetMongo(log *logger.Logger, appName, mongoURI string, connTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(mongoURI).
		SetAppName(appName).
		SetRetryWrites(true).
		SetServerSelectionTimeout(connTimeout)

	mc, err := mongo.Connect(ctx, opts)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	if err := mc.Ping(ctx, readpref.Primary()); err != nil {
		log.Fatal("Failed to ping MongoDB primary", "error", err)
	}

	log.Info("Successfully connected to MongoDB", "app_name", appName)
	c.Mongo = mc
}

// Ping lets the readiness probe check the connection.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.Mongo == nil {
		return fmt.Errorf("mongo client not connected")
	}
	return c.Mongo.Ping(ctx, readpref.Primary())
}

func (c *Client) GracefulShutdown(log *logger.Logger, timeout time.Duration) {
	if c == nil || c.Mongo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := c.Mongo.Disconnect(ctx); err != nil {
		log.Error("Failed to disconnect from MongoDB", "error", err)
		return
	}
	log.Info("Disconnected from MongoDB")
}
