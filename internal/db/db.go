package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/curaious/fabricqr/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNotConfigured is returned by stores when the process was started without
// any database connection settings.
var ErrNotConfigured = errors.New("database is not configured")

// NewConn opens a Postgres pool. The pool is lazy, so an unreachable server is
// logged here and surfaces again on the first query.
func NewConn(ctx context.Context, conf *config.Config) (*sqlx.DB, error) {
	slog.Info("Connecting to database", slog.String("driver", "postgres"), slog.String("host", conf.DB_HOST))

	db, err := sqlx.Open("postgres", conf.PostgresDSN())
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		slog.Error("Unable to connect to database", slog.Any("error", err))
		return db, nil
	}

	slog.Info("Connected to database")

	return db, nil
}
