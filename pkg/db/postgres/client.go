package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/retry"
	"github.com/pump-pill/arenax/pkg/utils"
)

// Executor is implemented by both *pgxpool.Pool and pgx.Tx, so store methods
// can run inside or outside a transaction.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client wraps a PostgreSQL connection pool.
type Client struct {
	Logger *zap.Logger
	Pool   *pgxpool.Pool
}

// New connects to PostgreSQL using POSTGRES_URL with a retried initial dial.
func New(ctx context.Context, logger *zap.Logger) (Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbURL := utils.Env("POSTGRES_URL", "postgres://localhost:5432/arenax")

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return Client{}, fmt.Errorf("failed to parse POSTGRES_URL: %w", err)
	}

	config.MinConns = int32(utils.EnvInt("POSTGRES_MIN_CONNS", 2))
	config.MaxConns = int32(utils.EnvInt("POSTGRES_MAX_CONNS", 20))
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	client := Client{Logger: logger}

	retryErr := retry.WithBackoff(connCtx, retry.DefaultConfig(), logger, "postgres_connection", func() error {
		pool, openErr := pgxpool.NewWithConfig(connCtx, config)
		if openErr != nil {
			return fmt.Errorf("failed to create postgres connection pool: %w", openErr)
		}
		if pingErr := pool.Ping(connCtx); pingErr != nil {
			pool.Close()
			return fmt.Errorf("failed to ping postgres: %w", pingErr)
		}
		client.Pool = pool
		return nil
	})
	if retryErr != nil {
		return Client{}, retryErr
	}

	logger.Info("PostgreSQL connection pool configured",
		zap.Int32("min_conns", config.MinConns),
		zap.Int32("max_conns", config.MaxConns))

	return client, nil
}

// Ping verifies the pool is healthy.
func (c Client) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

// Close releases the pool.
func (c Client) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
