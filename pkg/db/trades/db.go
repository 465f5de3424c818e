package trades

import (
	"context"

	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/db/clickhouse"
	"github.com/pump-pill/arenax/pkg/utils"
)

// DB is the append-only trade ledger plus derived stat snapshots, backed by
// ClickHouse. Trade events are owned exclusively by this store; downstream
// components only ever read them.
type DB struct {
	clickhouse.Client
	Name string
}

// New connects to ClickHouse and ensures the trade tables exist.
func New(ctx context.Context, logger *zap.Logger) (*DB, error) {
	dbName := clickhouse.SanitizeName(utils.Env("TRADES_DB", "arenax_trades"))

	client, err := clickhouse.New(ctx, logger.With(zap.String("db", dbName), zap.String("component", "trades_db")), dbName)
	if err != nil {
		return nil, err
	}

	db := &DB{Client: client, Name: dbName}
	if err := db.InitializeDB(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// InitializeDB creates the trade_events and wallet_epoch_stats tables.
func (db *DB) InitializeDB(ctx context.Context) error {
	if err := db.initTradeEvents(ctx); err != nil {
		return err
	}
	return db.initWalletEpochStats(ctx)
}
