package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config selects the single backend a deployment runs against.
type Config struct {
	// Provider is one of postgres, mysql, sqlite, mongodb, redis, memory.
	Provider string
	// DSN is the provider-native connection string. The MySQL DSN must carry
	// parseTime=true; Open adds it when missing.
	DSN string
	// MongoDatabase names the database for the mongodb provider.
	MongoDatabase string
}

// Open builds the configured backend adapter. Exactly one backend is active
// per process; the returned Closer tears down its connections.
func Open(ctx context.Context, cfg Config) (ShortURLStorage, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "postgres", "postgresql":
		pool, err := pgxpool.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return NewPostgresShortURLStorage(pool), func() error { pool.Close(); return nil }, nil

	case "mysql":
		dsn := cfg.DSN
		if !strings.Contains(dsn, "parseTime=") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "parseTime=true"
		}
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mysql: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		return NewMySQLShortURLStorage(db), db.Close, nil

	case "sqlite":
		s, err := NewSQLiteShortURLStorage(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case "mongodb", "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.DSN))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongodb: %w", err)
		}
		database := cfg.MongoDatabase
		if database == "" {
			database = "urlshortener"
		}
		s, err := NewMongoShortURLStorage(ctx, client, database)
		if err != nil {
			client.Disconnect(ctx)
			return nil, nil, err
		}
		return s, func() error { return client.Disconnect(context.Background()) }, nil

	case "redis":
		opt, err := redis.ParseURL(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisShortURLStorage(client), client.Close, nil

	case "memory":
		return NewMemoryShortURLStorage(), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage provider: %q", cfg.Provider)
	}
}
