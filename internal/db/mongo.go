package db

import (
	"context"
	"log/slog"

	"github.com/curaious/fabricqr/internal/config"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// NewMongo creates a client for conf.MONGO_URI and returns the configured database.
// Like NewConn, a failed ping is logged rather than returned.
func NewMongo(ctx context.Context, conf *config.Config) (*mongo.Client, *mongo.Database, error) {
	slog.Info("Connecting to database", slog.String("driver", "mongodb"), slog.String("database", conf.MONGO_DATABASE))

	client, err := mongo.Connect(options.Client().ApplyURI(conf.MONGO_URI))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		slog.Error("Unable to connect to database", slog.Any("error", err))
	} else {
		slog.Info("Connected to database")
	}

	return client, client.Database(conf.MONGO_DATABASE), nil
}
