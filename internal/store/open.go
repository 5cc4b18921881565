package store

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
)

const (
	initialInterval = 1 * time.Second
	maxInterval     = 10 * time.Second
	maxElapsedTime  = 1 * time.Minute
	randomization   = 0.5
	multiplier      = 2
)

// Config selects and configures a backend.
type Config struct {
	Backend         string
	PostgresDSN     string
	PostgresTable   string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	RedisAddr       string
}

// Open connects to the configured backend, retrying the initial ping
// with exponential backoff.
func Open(ctx context.Context, cfg Config, logger *otelzap.Logger) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemory(nil), nil

	case BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		if err := ping(ctx, logger, cfg.Backend, pool.Ping); err != nil {
			pool.Close()
			return nil, err
		}
		return NewPostgres(pool, cfg.PostgresTable, pool.Close), nil

	case BackendMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("mongo client: %w", err)
		}
		if err := ping(ctx, logger, cfg.Backend, func(ctx context.Context) error { return client.Ping(ctx, nil) }); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, err
		}
		return NewMongo(client, cfg.MongoDatabase, cfg.MongoCollection), nil

	case BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := ping(ctx, logger, cfg.Backend, func(ctx context.Context) error { return rdb.Ping(ctx).Err() }); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return NewRedis(rdb), nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func ping(ctx context.Context, logger *otelzap.Logger, backend string, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxInterval(maxInterval),
		backoff.WithMaxElapsedTime(maxElapsedTime),
		backoff.WithRandomizationFactor(randomization),
		backoff.WithMultiplier(multiplier),
	)

	var attempt int
	err := backoff.Retry(func() error {
		attempt++
		logger.Info("Attempting store connection",
			zap.String("backend", backend),
			zap.Int("attempt", attempt),
		)
		return fn(ctx)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		logger.Error("Store connection failed after retries",
			zap.String("backend", backend),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return fmt.Errorf("failed to ping store: %w", err)
	}

	logger.Info("Store connection established",
		zap.String("backend", backend),
		zap.Int("attempts", attempt),
	)
	return nil
}
