package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/aggregator"
	"github.com/pump-pill/arenax/pkg/db/rewardstore"
	"github.com/pump-pill/arenax/pkg/db/trades"
	"github.com/pump-pill/arenax/pkg/model"
	"github.com/pump-pill/arenax/pkg/redis"
)

const (
	insertBatchSize = 500
)

// TradeStore is the slice of the trades database the consumer writes to.
type TradeStore interface {
	aggregator.StatsWriter
	InsertTradeEvents(ctx context.Context, events []trades.EpochTrade) error
}

// EpochSource resolves the epoch window containing a timestamp. Implemented
// by the reward store.
type EpochSource interface {
	WindowForTime(ctx context.Context, ts time.Time) (*model.EpochWindow, error)
}

type acker interface {
	Ack(ctx context.Context, ids ...string) error
}

// Consumer reads trade events off the Redis stream, tags each with the epoch
// window containing its timestamp, records it in the append-only ledger, and
// folds it into the running aggregates. Events outside every known window are
// logged and dropped; they can never corrupt an epoch's totals.
//
// Stream entries are acked only after their batch lands in the ledger, so a
// crash mid-buffer redelivers rather than loses them. Redelivered entries that
// did land dedupe on msg_id.
type Consumer struct {
	Logger        *zap.Logger
	TradesDB      TradeStore
	RewardDB      EpochSource
	Aggregator    *aggregator.Aggregator
	RedisClient   *redis.Client
	FlushInterval time.Duration

	acks acker

	mu     sync.Mutex
	buffer []trades.EpochTrade
	window *model.EpochWindow

	dropped uint64
}

// Run consumes until ctx is cancelled. The flush loop runs alongside the
// stream reader so aggregates reach the store even during quiet periods.
func (c *Consumer) Run(ctx context.Context) error {
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}

	sc, err := redis.NewStreamConsumer(c.RedisClient, redis.StreamConsumerConfig{
		Stream:    redis.StreamTradeEvents,
		Group:     "ingest",
		Consumer:  consumerName(),
		DeferAcks: true,
		Logger:    c.Logger,
	})
	if err != nil {
		return err
	}
	c.acks = sc

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// Final flush with a fresh deadline so buffered work lands.
				flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			case <-ticker.C:
				c.flush(ctx)
			}
		}
	}()

	runErr := sc.Run(ctx, c.handle)
	wg.Wait()
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func (c *Consumer) handle(ctx context.Context, msg redis.Message) error {
	ev, err := parseTradeEvent(msg.Values)
	if err != nil {
		// Malformed events are acked and dropped: redelivery cannot fix them.
		c.Logger.Warn("Dropping malformed trade event",
			zap.String("id", msg.ID),
			zap.Error(err))
		c.ack(ctx, msg.ID)
		return nil
	}

	window, err := c.windowFor(ctx, ev.Ts)
	if err != nil {
		if errors.Is(err, rewardstore.ErrEpochNotFound) {
			c.mu.Lock()
			c.dropped++
			dropped := c.dropped
			c.mu.Unlock()
			c.Logger.Warn("Dropping trade outside every epoch window",
				zap.String("wallet", ev.Wallet),
				zap.Time("ts", ev.Ts),
				zap.Uint64("droppedTotal", dropped))
			c.ack(ctx, msg.ID)
			return nil
		}
		// Store unavailable: leave the event for redelivery.
		return err
	}

	c.Aggregator.Apply(ctx, window.Index, ev)

	// Buffered, not yet durable. The ack waits for flush; losing the process
	// here leaves the entry pending for redelivery.
	c.mu.Lock()
	c.buffer = append(c.buffer, trades.EpochTrade{EpochIndex: window.Index, MsgID: msg.ID, Event: ev})
	full := len(c.buffer) >= insertBatchSize
	c.mu.Unlock()

	if full {
		c.flush(ctx)
	}
	return nil
}

// windowFor resolves the epoch window containing ts, caching the last hit
// since a live stream lands almost entirely in the current window.
func (c *Consumer) windowFor(ctx context.Context, ts time.Time) (*model.EpochWindow, error) {
	c.mu.Lock()
	cached := c.window
	c.mu.Unlock()
	if cached != nil && cached.Contains(ts) {
		return cached, nil
	}

	window, err := c.RewardDB.WindowForTime(ctx, ts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.window = window
	c.mu.Unlock()
	return window, nil
}

// flush commits the buffered ledger rows, acks their stream entries, and
// flushes the dirty aggregates. Acks happen strictly after the insert
// succeeds; on insert failure the batch is requeued unacked so the entries
// stay pending.
func (c *Consumer) flush(ctx context.Context) {
	c.mu.Lock()
	batch := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	if len(batch) > 0 {
		if err := c.TradesDB.InsertTradeEvents(ctx, batch); err != nil {
			c.Logger.Error("Failed to insert trade events, requeueing batch",
				zap.Int("events", len(batch)),
				zap.Error(err))
			c.mu.Lock()
			c.buffer = append(batch, c.buffer...)
			c.mu.Unlock()
			return
		}

		ids := make([]string, 0, len(batch))
		for _, et := range batch {
			if et.MsgID != "" {
				ids = append(ids, et.MsgID)
			}
		}
		c.ack(ctx, ids...)
	}

	if err := c.Aggregator.Flush(ctx, c.TradesDB); err != nil {
		c.Logger.Error("Failed to flush aggregates", zap.Error(err))
	}
}

// ack acknowledges stream entries whose effects are durable. An ack failure is
// tolerable: the entries redeliver and dedupe on insert.
func (c *Consumer) ack(ctx context.Context, ids ...string) {
	if c.acks == nil || len(ids) == 0 {
		return
	}
	if err := c.acks.Ack(ctx, ids...); err != nil {
		c.Logger.Warn("Failed to ack stream entries",
			zap.Int("count", len(ids)),
			zap.Error(err))
	}
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return fmt.Sprintf("ingest-%d", os.Getpid())
	}
	return host
}

func parseTradeEvent(values map[string]interface{}) (model.TradeEvent, error) {
	str := func(key string) string {
		v, _ := values[key].(string)
		return v
	}

	side, err := model.ParseTradeSide(str("side"))
	if err != nil {
		return model.TradeEvent{}, err
	}
	amount, err := decimal.NewFromString(str("amountToken"))
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("invalid amountToken: %w", err)
	}
	price, err := decimal.NewFromString(str("priceSol"))
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("invalid priceSol: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, str("ts"))
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("invalid ts: %w", err)
	}

	ev := model.TradeEvent{
		Wallet:      str("wallet"),
		Token:       str("token"),
		Side:        side,
		AmountToken: amount,
		PriceSol:    price,
		Ts:          ts.UTC(),
	}
	if err := ev.Validate(); err != nil {
		return model.TradeEvent{}, err
	}
	return ev, nil
}
