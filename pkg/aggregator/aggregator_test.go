package aggregator_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pump-pill/arenax/pkg/aggregator"
	"github.com/pump-pill/arenax/pkg/model"
	"github.com/pump-pill/arenax/pkg/oracle"
)

type captureWriter struct {
	mu      sync.Mutex
	batches [][]model.WalletEpochStat
	failing bool
}

func (w *captureWriter) InsertStats(_ context.Context, stats []model.WalletEpochStat) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failing {
		return fmt.Errorf("stats store unavailable")
	}
	w.batches = append(w.batches, stats)
	return nil
}

func trade(wallet, amount, price string, ts time.Time) model.TradeEvent {
	return model.TradeEvent{
		Wallet:      wallet,
		Token:       "PILL",
		Side:        model.SideBuy,
		AmountToken: decimal.RequireFromString(amount),
		PriceSol:    decimal.RequireFromString(price),
		Ts:          ts,
	}
}

// TestApplyMatchesRecompute feeds the same trades incrementally in several
// arrival orders and expects aggregates identical to a full recompute over
// the ledger.
func TestApplyMatchesRecompute(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []model.TradeEvent{
		trade("walletA", "100", "0.25", base),
		trade("walletB", "40", "0.5", base.Add(time.Minute)),
		trade("walletA", "10.5", "1.2", base.Add(2*time.Minute)),
		trade("walletC", "3", "0.001", base.Add(3*time.Minute)),
		trade("walletB", "0.5", "2", base.Add(4*time.Minute)),
	}

	orders := [][]int{
		{0, 1, 2, 3, 4},
		{4, 3, 2, 1, 0},
		{2, 0, 4, 1, 3},
	}

	reference := aggregator.New(zaptest.NewLogger(t), oracle.NewFixed(decimal.RequireFromString("150"))).
		Recompute(ctx, 9, events)
	require.Len(t, reference, 3)

	for _, order := range orders {
		agg := aggregator.New(zaptest.NewLogger(t), oracle.NewFixed(decimal.RequireFromString("150")))
		for _, i := range order {
			agg.Apply(ctx, 9, events[i])
		}

		writer := &captureWriter{}
		require.NoError(t, agg.Flush(ctx, writer))
		require.Len(t, writer.batches, 1)

		byWallet := map[string]model.WalletEpochStat{}
		for _, s := range writer.batches[0] {
			byWallet[s.Wallet] = s
		}
		require.Len(t, byWallet, len(reference))

		for _, want := range reference {
			got, ok := byWallet[want.Wallet]
			require.True(t, ok, "missing wallet %s", want.Wallet)
			assert.True(t, want.VolSol.Equal(got.VolSol), "volSol order %v wallet %s: %s != %s", order, want.Wallet, got.VolSol, want.VolSol)
			assert.True(t, want.VolToken.Equal(got.VolToken))
			assert.Equal(t, want.TradeCount, got.TradeCount)
			require.NotNil(t, got.VolUsd)
			assert.True(t, want.VolUsd.Equal(*got.VolUsd))
		}
	}
}

func TestFlushRetainsDirtyOnFailure(t *testing.T) {
	ctx := context.Background()
	agg := aggregator.New(zaptest.NewLogger(t), oracle.NewFixed(decimal.RequireFromString("150")))
	agg.Apply(ctx, 1, trade("walletA", "5", "1", time.Now().UTC()))

	writer := &captureWriter{failing: true}
	require.Error(t, agg.Flush(ctx, writer))

	// The aggregate stays dirty, so the next flush picks it up.
	writer.failing = false
	require.NoError(t, agg.Flush(ctx, writer))
	require.Len(t, writer.batches, 1)
	assert.Equal(t, "walletA", writer.batches[0][0].Wallet)

	// Once flushed, a clean aggregate is not re-sent.
	require.NoError(t, agg.Flush(ctx, writer))
	assert.Len(t, writer.batches, 1)
}

func TestFlushOnlyDirty(t *testing.T) {
	ctx := context.Background()
	agg := aggregator.New(zaptest.NewLogger(t), oracle.NewFixed(decimal.RequireFromString("150")))
	agg.Apply(ctx, 1, trade("walletA", "5", "1", time.Now().UTC()))

	writer := &captureWriter{}
	require.NoError(t, agg.Flush(ctx, writer))
	require.Len(t, writer.batches, 1)

	// Only the re-touched wallet shows up in the second flush.
	agg.Apply(ctx, 1, trade("walletB", "2", "1", time.Now().UTC()))
	require.NoError(t, agg.Flush(ctx, writer))
	require.Len(t, writer.batches, 2)
	require.Len(t, writer.batches[1], 1)
	assert.Equal(t, "walletB", writer.batches[1][0].Wallet)
}

func TestDropEpoch(t *testing.T) {
	ctx := context.Background()
	agg := aggregator.New(zaptest.NewLogger(t), oracle.NewFixed(decimal.RequireFromString("150")))
	agg.Apply(ctx, 1, trade("walletA", "5", "1", time.Now().UTC()))
	agg.Apply(ctx, 2, trade("walletA", "5", "1", time.Now().UTC()))

	agg.DropEpoch(1)

	writer := &captureWriter{}
	require.NoError(t, agg.Flush(ctx, writer))
	require.Len(t, writer.batches, 1)
	require.Len(t, writer.batches[0], 1)
	assert.Equal(t, uint64(2), writer.batches[0][0].EpochIndex)
}

func TestApplyConcurrentSameWallet(t *testing.T) {
	ctx := context.Background()
	agg := aggregator.New(zaptest.NewLogger(t), oracle.NewFixed(decimal.RequireFromString("150")))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.Apply(ctx, 1, trade("walletA", "1", "1", time.Now().UTC()))
		}()
	}
	wg.Wait()

	writer := &captureWriter{}
	require.NoError(t, agg.Flush(ctx, writer))
	require.Len(t, writer.batches, 1)
	require.Len(t, writer.batches[0], 1)
	got := writer.batches[0][0]
	assert.Equal(t, uint64(50), got.TradeCount)
	assert.True(t, got.VolSol.Equal(decimal.RequireFromString("50")))
}
