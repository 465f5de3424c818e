package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamConsumerConfig configures a StreamConsumer.
type StreamConsumerConfig struct {
	// Stream is the Redis stream to consume from (required).
	Stream string

	// Group and Consumer enable consumer-group mode, which lets multiple
	// ingest instances share the stream without double-processing.
	Group    string
	Consumer string

	// Count is the max entries read per batch. Default: 100.
	Count int64

	// Block is how long to wait for new entries. Default: 5 seconds.
	Block time.Duration

	// RetryInterval is the wait before retrying after a read error.
	RetryInterval time.Duration

	// DeferAcks leaves acknowledgement to the caller: Run never acks on its
	// own, the caller invokes Ack once an entry's effects are durable. A
	// crash before Ack leaves the entry pending for redelivery instead of
	// losing it.
	DeferAcks bool

	Logger *zap.Logger
}

// Message is a single stream entry with parsed fields.
type Message struct {
	ID     string
	Values map[string]interface{}
}

// MessageHandler processes one entry. Returning an error skips the ack so the
// entry is redelivered.
type MessageHandler func(ctx context.Context, msg Message) error

// StreamConsumer consumes a Redis stream with automatic reconnection.
type StreamConsumer struct {
	client *Client
	config StreamConsumerConfig
	logger *zap.Logger
}

// NewStreamConsumer creates a stream consumer.
func NewStreamConsumer(client *Client, config StreamConsumerConfig) (*StreamConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Stream == "" {
		return nil, errors.New("stream name is required")
	}
	if config.Group != "" && config.Consumer == "" {
		return nil, errors.New("consumer name is required when using consumer groups")
	}
	if config.Count == 0 {
		config.Count = 100
	}
	if config.Block == 0 {
		config.Block = 5 * time.Second
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StreamConsumer{client: client, config: config, logger: logger}, nil
}

// Run consumes entries until ctx is cancelled, invoking handler per entry.
func (sc *StreamConsumer) Run(ctx context.Context, handler MessageHandler) error {
	rdb := sc.client.GetClient()

	if sc.config.Group != "" {
		// MKSTREAM so a fresh deployment does not need the producer first.
		err := rdb.XGroupCreateMkStream(ctx, sc.config.Stream, sc.config.Group, "0").Err()
		if err != nil && !isBusyGroup(err) {
			return err
		}
	}

	lastID := "0"
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := sc.read(ctx, rdb, lastID)
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sc.logger.Warn("Stream read failed, retrying",
				zap.String("stream", sc.config.Stream),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sc.config.RetryInterval):
			}
			continue
		}

		for _, s := range streams {
			for _, entry := range s.Messages {
				msg := Message{ID: entry.ID, Values: entry.Values}
				if handleErr := handler(ctx, msg); handleErr != nil {
					sc.logger.Warn("Handler failed, entry will be redelivered",
						zap.String("stream", sc.config.Stream),
						zap.String("id", entry.ID),
						zap.Error(handleErr))
					continue
				}
				if sc.config.Group != "" && !sc.config.DeferAcks {
					_ = rdb.XAck(ctx, sc.config.Stream, sc.config.Group, entry.ID).Err()
				}
				lastID = entry.ID
			}
		}
	}
}

// Ack acknowledges processed entries. Only meaningful in consumer-group mode;
// without a group there is nothing to ack.
func (sc *StreamConsumer) Ack(ctx context.Context, ids ...string) error {
	if sc.config.Group == "" || len(ids) == 0 {
		return nil
	}
	return sc.client.GetClient().XAck(ctx, sc.config.Stream, sc.config.Group, ids...).Err()
}

func (sc *StreamConsumer) read(ctx context.Context, rdb *redis.Client, lastID string) ([]redis.XStream, error) {
	if sc.config.Group != "" {
		return rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    sc.config.Group,
			Consumer: sc.config.Consumer,
			Streams:  []string{sc.config.Stream, ">"},
			Count:    sc.config.Count,
			Block:    sc.config.Block,
		}).Result()
	}
	return rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{sc.config.Stream, lastID},
		Count:   sc.config.Count,
		Block:   sc.config.Block,
	}).Result()
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}
