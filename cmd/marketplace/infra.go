package main

import (
	"context"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/agromarket/internal/config"
	"github.com/fjod/agromarket/internal/remote"
	"github.com/fjod/agromarket/internal/repository"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// infra holds the storage and notification backends shared by commands.
type infra struct {
	repo     repository.RecordRepository
	redis    *redis.Client
	notifier *remote.Notifier
	store    *remote.Store

	closers []func()
}

func openInfra(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*infra, error) {
	in := &infra{}

	if err := in.openRepository(ctx, cfg, log); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openRedis(ctx, cfg.Redis, log); err != nil {
		in.Close()
		return nil, err
	}

	in.notifier = remote.NewNotifier(in.redis)
	in.store = remote.NewStore(in.repo, in.notifier, log)
	return in, nil
}

func (in *infra) openRepository(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	if cfg.Store.Backend == config.BackendMemory {
		in.repo = repository.NewMemoryRepository()
		log.Warn("using in-memory store, data is lost on exit")
		return nil
	}

	db, err := repository.ConnectMongoDB(ctx, repository.MongoOptions{
		URI:         cfg.Mongo.URI,
		Database:    cfg.Mongo.Database,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
		MinPoolSize: cfg.Mongo.MinPoolSize,
	})
	if err != nil {
		return errors.Wrap(err, "failed to connect to MongoDB")
	}
	in.closers = append(in.closers, func() {
		if err := db.Client().Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("failed to disconnect from MongoDB")
		}
	})

	repo := repository.NewMongoRepository(db)
	if err := repo.CreateIndexes(ctx, remote.Products, remote.ProductOwnerField); err != nil {
		return errors.Wrap(err, "failed to create product indexes")
	}
	in.repo = repo
	log.WithField("database", cfg.Mongo.Database).Info("connected to MongoDB")
	return nil
}

func (in *infra) openRedis(ctx context.Context, cfg config.Redis, log logrus.FieldLogger) error {
	addr := cfg.Addr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return errors.Wrap(err, "failed to start embedded redis")
		}
		in.closers = append(in.closers, mr.Close)
		addr = mr.Addr()
		log.WithField("addr", addr).Warn("AGRO_REDIS_ADDR not set, using embedded redis")
	}

	in.redis = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	in.closers = append(in.closers, func() { in.redis.Close() })
	if err := in.redis.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis connection failed")
	}
	log.Info("redis ping succeeded")
	return nil
}

// Close releases the backends in reverse order of opening.
func (in *infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
	in.closers = nil
}
