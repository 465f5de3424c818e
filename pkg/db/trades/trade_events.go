package trades

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"github.com/pump-pill/arenax/pkg/model"
)

// EpochTrade is a trade event tagged with the epoch window it was scored
// against at ingest time. MsgID is the source stream entry ID; it dedupes
// redelivered entries in the ledger.
type EpochTrade struct {
	EpochIndex uint64
	MsgID      string
	Event      model.TradeEvent
}

type tradeEventRow struct {
	EpochIndex  uint64          `ch:"epoch_index"`
	Wallet      string          `ch:"wallet"`
	MsgID       string          `ch:"msg_id"`
	Token       string          `ch:"token"`
	Side        string          `ch:"side"`
	AmountToken decimal.Decimal `ch:"amount_token"`
	PriceSol    decimal.Decimal `ch:"price_sol"`
	Ts          time.Time       `ch:"ts"`
}

func (db *DB) initTradeEvents(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s".trade_events (
			epoch_index UInt64 CODEC(Delta, ZSTD(1)),
			wallet String CODEC(ZSTD(1)),
			msg_id String CODEC(ZSTD(1)),
			token String CODEC(ZSTD(1)),
			side LowCardinality(String),
			amount_token Decimal(38, 18),
			price_sol Decimal(38, 18),
			ts DateTime64(6) CODEC(DoubleDelta, LZ4)
		) ENGINE = ReplacingMergeTree
		ORDER BY (epoch_index, wallet, ts, msg_id)
	`, db.Name)

	return db.Exec(ctx, query)
}

// InsertTradeEvents appends a batch of trade events. The ledger is
// append-only; there is no update or delete path. A stream entry inserted
// twice (redelivery after a missed ack) collapses to one row via the
// ReplacingMergeTree key, which includes msg_id.
func (db *DB) InsertTradeEvents(ctx context.Context, events []EpochTrade) error {
	if len(events) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`INSERT INTO "%s".trade_events (epoch_index, wallet, msg_id, token, side, amount_token, price_sol, ts) VALUES`,
		db.Name,
	)
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, et := range events {
		ev := et.Event
		if err := batch.Append(
			et.EpochIndex,
			ev.Wallet,
			et.MsgID,
			ev.Token,
			string(ev.Side),
			ev.AmountToken,
			ev.PriceSol,
			ev.Ts,
		); err != nil {
			return err
		}
	}

	return batch.Send()
}

// TradesByEpoch returns every trade event recorded against the given epoch.
func (db *DB) TradesByEpoch(ctx context.Context, epochIndex uint64) ([]model.TradeEvent, error) {
	// FINAL so not-yet-merged duplicate inserts never double-count.
	query := fmt.Sprintf(`
		SELECT epoch_index, wallet, msg_id, token, side, amount_token, price_sol, ts
		FROM "%s".trade_events FINAL
		WHERE epoch_index = ?
		ORDER BY wallet, ts
	`, db.Name)

	var rows []tradeEventRow
	if err := db.Select(ctx, &rows, query, epochIndex); err != nil {
		return nil, err
	}

	out := make([]model.TradeEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.TradeEvent{
			Wallet:      r.Wallet,
			Token:       r.Token,
			Side:        model.TradeSide(r.Side),
			AmountToken: r.AmountToken,
			PriceSol:    r.PriceSol,
			Ts:          r.Ts,
		})
	}
	return out, nil
}
