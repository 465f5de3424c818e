package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/model"
	"github.com/pump-pill/arenax/pkg/oracle"
)

// StatsWriter commits aggregate snapshots. Implemented by the trades DB.
type StatsWriter interface {
	InsertStats(ctx context.Context, stats []model.WalletEpochStat) error
}

// Aggregator maintains running per-(epoch, wallet) aggregates in memory and
// flushes them as snapshots. Applying each trade exactly once yields the same
// aggregates as a full recompute over the event ledger, in any arrival order,
// because every folded operation is commutative addition.
type Aggregator struct {
	logger *zap.Logger
	prices oracle.PriceSource
	accums *xsync.Map[string, *accumulator]
}

type accumulator struct {
	mu    sync.Mutex
	stat  model.WalletEpochStat
	dirty bool
}

// New creates an empty aggregator.
func New(logger *zap.Logger, prices oracle.PriceSource) *Aggregator {
	return &Aggregator{
		logger: logger,
		prices: prices,
		accums: xsync.NewMap[string, *accumulator](),
	}
}

func key(epochIndex uint64, wallet string) string {
	return fmt.Sprintf("%d:%s", epochIndex, wallet)
}

// Apply folds one trade event into the running aggregate for its wallet.
// Concurrent callers for the same wallet serialize on the accumulator lock;
// different wallets never contend.
func (a *Aggregator) Apply(ctx context.Context, epochIndex uint64, ev model.TradeEvent) {
	acc, _ := a.accums.LoadOrStore(key(epochIndex, ev.Wallet), &accumulator{
		stat: model.WalletEpochStat{Wallet: ev.Wallet, EpochIndex: epochIndex},
	})

	volSol := ev.VolSol()
	rate, hasRate := a.prices.SolUsd(ctx)

	acc.mu.Lock()
	defer acc.mu.Unlock()

	acc.stat.VolToken = acc.stat.VolToken.Add(ev.AmountToken)
	acc.stat.VolSol = acc.stat.VolSol.Add(volSol)
	acc.stat.TradeCount++
	acc.stat.UpdatedAt = time.Now().UTC()
	if hasRate {
		usd := acc.stat.VolSol.Mul(rate)
		acc.stat.VolUsd = &usd
	}
	acc.dirty = true
}

// Flush writes every dirty aggregate as a snapshot. On write failure the
// aggregates stay dirty so the next flush retries them; re-writing a snapshot
// is harmless since the store keeps the latest version per (epoch, wallet).
func (a *Aggregator) Flush(ctx context.Context, writer StatsWriter) error {
	var (
		batch   []model.WalletEpochStat
		flushed []*accumulator
	)
	a.accums.Range(func(_ string, acc *accumulator) bool {
		acc.mu.Lock()
		if acc.dirty {
			batch = append(batch, copyStat(acc.stat))
			flushed = append(flushed, acc)
		}
		acc.mu.Unlock()
		return true
	})

	if len(batch) == 0 {
		return nil
	}

	if err := writer.InsertStats(ctx, batch); err != nil {
		return fmt.Errorf("flush %d aggregates: %w", len(batch), err)
	}

	for _, acc := range flushed {
		acc.mu.Lock()
		acc.dirty = false
		acc.mu.Unlock()
	}

	a.logger.Debug("Flushed aggregates", zap.Int("wallets", len(batch)))
	return nil
}

// Recompute folds the complete event ledger for an epoch into fresh
// aggregates, independent of any in-memory state. Output is ordered by wallet
// so repeated runs over the same ledger are byte-identical.
func (a *Aggregator) Recompute(ctx context.Context, epochIndex uint64, events []model.TradeEvent) []model.WalletEpochStat {
	rate, hasRate := a.prices.SolUsd(ctx)
	now := time.Now().UTC()

	byWallet := make(map[string]*model.WalletEpochStat)
	for _, ev := range events {
		stat, ok := byWallet[ev.Wallet]
		if !ok {
			stat = &model.WalletEpochStat{Wallet: ev.Wallet, EpochIndex: epochIndex, UpdatedAt: now}
			byWallet[ev.Wallet] = stat
		}
		stat.VolToken = stat.VolToken.Add(ev.AmountToken)
		stat.VolSol = stat.VolSol.Add(ev.VolSol())
		stat.TradeCount++
	}

	out := make([]model.WalletEpochStat, 0, len(byWallet))
	for _, stat := range byWallet {
		if hasRate {
			usd := stat.VolSol.Mul(rate)
			stat.VolUsd = &usd
		}
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Wallet < out[j].Wallet })
	return out
}

// DropEpoch evicts all in-memory aggregates for a closed epoch.
func (a *Aggregator) DropEpoch(epochIndex uint64) {
	prefix := fmt.Sprintf("%d:", epochIndex)
	var victims []string
	a.accums.Range(func(k string, _ *accumulator) bool {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			victims = append(victims, k)
		}
		return true
	})
	for _, k := range victims {
		a.accums.Delete(k)
	}
}

func copyStat(s model.WalletEpochStat) model.WalletEpochStat {
	out := s
	if s.VolUsd != nil {
		usd := *s.VolUsd
		out.VolUsd = &usd
	}
	return out
}
