package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/curaious/fabricqr/internal/config"
	"github.com/curaious/fabricqr/internal/db"
	"github.com/curaious/fabricqr/internal/metrics"
	"github.com/curaious/fabricqr/internal/pubsub"
	"github.com/curaious/fabricqr/internal/services/material"
	"github.com/curaious/fabricqr/internal/services/user"
	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type Services struct {
	User     *user.UserService
	Material *material.MaterialService

	// Postgres is set only when the relational backend is in use; the
	// migrate command needs it.
	Postgres *sqlx.DB

	mongoDB *mongo.Database

	// materialCache stays detached from Material until WatchMaterials has a
	// change feed running to keep it in step with the store.
	materialCache material.Cache

	closers []func(context.Context) error
}

// NewServices picks the store from conf: MongoDB when MONGO_URI is set,
// otherwise Postgres when DB_HOST and DB_NAME are set. Without either the
// server still starts and every store call fails with db.ErrNotConfigured.
func NewServices(ctx context.Context, conf *config.Config, m *metrics.Metrics) (*Services, error) {
	svc := &Services{}

	var (
		userRepo     user.UserRepo
		materialRepo material.MaterialRepo
	)

	switch {
	case conf.HasMongo():
		client, database, err := db.NewMongo(ctx, conf)
		if err != nil {
			return nil, err
		}
		svc.closers = append(svc.closers, client.Disconnect)
		svc.mongoDB = database

		mu := user.NewMongoUserRepo(database)
		mm := material.NewMongoMaterialRepo(database)
		if err := mu.EnsureIndexes(ctx); err != nil {
			slog.Warn("Unable to ensure user indexes", slog.Any("error", err))
		}
		if err := mm.EnsureIndexes(ctx); err != nil {
			slog.Warn("Unable to ensure material indexes", slog.Any("error", err))
		}
		userRepo, materialRepo = mu, mm

	case conf.HasPostgres():
		conn, err := db.NewConn(ctx, conf)
		if err != nil {
			return nil, err
		}
		svc.Postgres = conn
		svc.closers = append(svc.closers, func(context.Context) error { return conn.Close() })
		userRepo, materialRepo = user.NewPostgresUserRepo(conn), material.NewPostgresMaterialRepo(conn)

	default:
		slog.Warn("No database configured; user and material routes will fail until MONGO_URI or DB_HOST/DB_NAME is set")
		userRepo, materialRepo = user.NewUnavailableRepo(), material.NewUnavailableRepo()
	}

	cache, err := newMaterialCache(conf, m)
	if err != nil {
		return nil, err
	}
	if rc, ok := cache.(interface{ Close() error }); ok {
		svc.closers = append(svc.closers, func(context.Context) error { return rc.Close() })
	}

	svc.materialCache = instrument(cache, m)
	svc.User = user.NewUserService(userRepo)
	svc.Material = material.NewMaterialService(materialRepo, nil)
	return svc, nil
}

// WatchMaterials starts the change feed of the configured store and turns on
// the material cache. When no feed can run the cache stays off and every
// lookup reads the store. The returned stop function is never nil.
func (s *Services) WatchMaterials(conf *config.Config) (stop func(), err error) {
	var feed pubsub.Feed
	switch {
	case s.mongoDB != nil:
		feed = pubsub.NewChangeStream(s.mongoDB)
	case s.Postgres != nil:
		feed = pubsub.NewPubSub(conf)
	default:
		return func() {}, nil
	}

	feed.Subscribe(s.onMaterialChange)
	s.EnableMaterialCache()
	if err := feed.Start(); err != nil {
		s.Material.UseCache(nil)
		feed.Stop()
		return func() {}, err
	}
	return feed.Stop, nil
}

// EnableMaterialCache puts the material cache in front of the store.
func (s *Services) EnableMaterialCache() {
	s.Material.UseCache(s.materialCache)
}

func (s *Services) onMaterialChange(ev pubsub.MaterialChangeEvent) {
	ctx := context.Background()
	if ev.Operation == pubsub.OperationReload {
		s.Material.InvalidateAll(ctx)
		return
	}
	s.Material.Invalidate(ctx, ev.QRCodeID)
}

func newMaterialCache(conf *config.Config, m *metrics.Metrics) (material.Cache, error) {
	if conf.REDIS_URL != "" {
		slog.Info("Using redis material cache", slog.Duration("ttl", conf.MATERIAL_CACHE_TTL))
		return material.NewRedisCacheFromURL(conf.REDIS_URL, conf.MATERIAL_CACHE_TTL)
	}
	slog.Info("Using in-process material cache", slog.Int("size", conf.MATERIAL_CACHE_SIZE), slog.Duration("ttl", conf.MATERIAL_CACHE_TTL))
	return material.NewLRUCache(conf.MATERIAL_CACHE_SIZE, conf.MATERIAL_CACHE_TTL), nil
}

func instrument(c material.Cache, m *metrics.Metrics) material.Cache {
	if m == nil {
		return c
	}
	return material.NewInstrumentedCache(c, m.MaterialCacheLookups)
}

// Ping checks the backing store. Users and materials share one store.
func (s *Services) Ping(ctx context.Context) error {
	return s.User.Ping(ctx)
}

func (s *Services) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i](ctx))
	}
	return errors.Join(errs...)
}
