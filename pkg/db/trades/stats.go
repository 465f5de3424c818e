package trades

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"github.com/pump-pill/arenax/pkg/model"
)

type walletEpochStatRow struct {
	Wallet     string          `ch:"wallet"`
	EpochIndex uint64          `ch:"epoch_index"`
	VolToken   decimal.Decimal `ch:"vol_token"`
	VolSol     decimal.Decimal `ch:"vol_sol"`
	VolUsd     decimal.Decimal `ch:"vol_usd"`
	HasUsd     uint8           `ch:"has_usd"`
	TradeCount uint64          `ch:"trade_count"`
	UpdatedAt  time.Time       `ch:"updated_at"`
}

// EpochSummary is the aggregate view behind GET /leaderboard/stats.
type EpochSummary struct {
	TotalParticipants uint64
	TotalVolSol       decimal.Decimal
	AverageVolSol     decimal.Decimal
	TopWallet         string
	LastUpdated       time.Time
}

func (db *DB) initWalletEpochStats(ctx context.Context) error {
	// Snapshot-on-change: each flush writes a full row per wallet and the
	// ReplacingMergeTree keeps the latest version per (epoch_index, wallet).
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s".wallet_epoch_stats (
			wallet String CODEC(ZSTD(1)),
			epoch_index UInt64 CODEC(Delta, ZSTD(1)),
			vol_token Decimal(38, 18),
			vol_sol Decimal(38, 18),
			vol_usd Decimal(38, 18),
			has_usd UInt8,
			trade_count UInt64 CODEC(Delta, ZSTD(1)),
			updated_at DateTime64(6) CODEC(DoubleDelta, LZ4)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY (epoch_index, wallet)
	`, db.Name)

	return db.Exec(ctx, query)
}

// InsertStats writes a snapshot batch of per-wallet aggregates.
func (db *DB) InsertStats(ctx context.Context, stats []model.WalletEpochStat) error {
	if len(stats) == 0 {
		return nil
	}

	query := fmt.Sprintf(
		`INSERT INTO "%s".wallet_epoch_stats (wallet, epoch_index, vol_token, vol_sol, vol_usd, has_usd, trade_count, updated_at) VALUES`,
		db.Name,
	)
	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, s := range stats {
		volUsd := decimal.Zero
		hasUsd := uint8(0)
		if s.VolUsd != nil {
			volUsd = *s.VolUsd
			hasUsd = 1
		}
		if err := batch.Append(
			s.Wallet,
			s.EpochIndex,
			s.VolToken,
			s.VolSol,
			volUsd,
			hasUsd,
			s.TradeCount,
			s.UpdatedAt,
		); err != nil {
			return err
		}
	}

	return batch.Send()
}

// StatsByEpoch returns the latest committed aggregate snapshot for an epoch,
// one row per wallet.
func (db *DB) StatsByEpoch(ctx context.Context, epochIndex uint64) ([]model.WalletEpochStat, error) {
	query := fmt.Sprintf(`
		SELECT wallet, epoch_index, vol_token, vol_sol, vol_usd, has_usd, trade_count, updated_at
		FROM "%s".wallet_epoch_stats FINAL
		WHERE epoch_index = ?
		ORDER BY wallet
	`, db.Name)

	var rows []walletEpochStatRow
	if err := db.Select(ctx, &rows, query, epochIndex); err != nil {
		return nil, err
	}

	out := make([]model.WalletEpochStat, 0, len(rows))
	for _, r := range rows {
		stat := model.WalletEpochStat{
			Wallet:     r.Wallet,
			EpochIndex: r.EpochIndex,
			VolToken:   r.VolToken,
			VolSol:     r.VolSol,
			TradeCount: r.TradeCount,
			UpdatedAt:  r.UpdatedAt,
		}
		if r.HasUsd == 1 {
			usd := r.VolUsd
			stat.VolUsd = &usd
		}
		out = append(out, stat)
	}
	return out, nil
}

// SummaryByEpoch computes the aggregate totals for an epoch in one pass.
func (db *DB) SummaryByEpoch(ctx context.Context, epochIndex uint64) (EpochSummary, error) {
	query := fmt.Sprintf(`
		SELECT
			count() AS participants,
			sum(vol_sol) AS total_vol,
			argMax(wallet, vol_sol) AS top_wallet,
			max(updated_at) AS last_updated
		FROM "%s".wallet_epoch_stats FINAL
		WHERE epoch_index = ?
	`, db.Name)

	var rows []struct {
		Participants uint64          `ch:"participants"`
		TotalVol     decimal.Decimal `ch:"total_vol"`
		TopWallet    string          `ch:"top_wallet"`
		LastUpdated  time.Time       `ch:"last_updated"`
	}
	if err := db.Select(ctx, &rows, query, epochIndex); err != nil {
		return EpochSummary{}, err
	}
	if len(rows) == 0 || rows[0].Participants == 0 {
		return EpochSummary{TotalVolSol: decimal.Zero, AverageVolSol: decimal.Zero}, nil
	}

	r := rows[0]
	avg := r.TotalVol.Div(decimal.NewFromInt(int64(r.Participants)))
	return EpochSummary{
		TotalParticipants: r.Participants,
		TotalVolSol:       r.TotalVol,
		AverageVolSol:     avg,
		TopWallet:         r.TopWallet,
		LastUpdated:       r.LastUpdated,
	}, nil
}
