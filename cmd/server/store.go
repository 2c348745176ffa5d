package main

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"friend-connect-backend/internal/common/config"
	"friend-connect-backend/internal/features/graph/repository"
	"friend-connect-backend/internal/features/graph/repository/memory"
	mongostore "friend-connect-backend/internal/features/graph/repository/mongo"
	redisstore "friend-connect-backend/internal/features/graph/repository/redis"
	"friend-connect-backend/internal/platform/mongo"
	"friend-connect-backend/internal/platform/redis"
)

// backend is an opened graph store plus whatever must be closed with it.
type backend struct {
	store repository.GraphStore
	// redis is set only for the redis driver; the fan-out reuses it.
	redis *goredis.Client
	close func(ctx context.Context) error
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Store {
	case config.StoreRedis:
		client, err := redis.Open(ctx, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return &backend{
			store: redisstore.NewGraphStore(client),
			redis: client,
			close: func(context.Context) error { return client.Close() },
		}, nil

	case config.StoreMongo:
		client, err := mongo.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := mongostore.EnsureIndexes(ctx, client.Database()); err != nil {
			_ = client.Close(ctx)
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return &backend{
			store: mongostore.NewGraphStore(client.Database()),
			close: client.Close,
		}, nil

	default:
		return &backend{
			store: memory.NewGraphStore(),
			close: func(context.Context) error { return nil },
		}, nil
	}
}
