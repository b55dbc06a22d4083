package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"meanrev-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Addr          string
	Password      string
	DB            int
	ConsumerGroup string // consumer group name, e.g. "trader"
	ConsumerName  string // unique consumer name, e.g. hostname
}

// Reader reads ticks from Redis Streams via Consumer Groups, letting a
// trader run off a separate feed process.
type Reader struct {
	client        *goredis.Client
	consumerGroup string
	consumerName  string
}

// NewReader creates a new Redis Reader and pings the server.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	group := cfg.ConsumerGroup
	if group == "" {
		group = "trader"
	}
	consumer := cfg.ConsumerName
	if consumer == "" {
		consumer = "worker-1"
	}

	log.Printf("[redis-reader] connected to %s (group=%s, consumer=%s)", cfg.Addr, group, consumer)
	return &Reader{
		client:        client,
		consumerGroup: group,
		consumerName:  consumer,
	}, nil
}

// EnsureConsumerGroup creates the consumer group on the stream if it doesn't
// exist. Uses "$" as start ID (only new messages) for fresh groups.
func (r *Reader) EnsureConsumerGroup(ctx context.Context, stream string) error {
	err := r.client.XGroupCreateMkStream(ctx, stream, r.consumerGroup, "$").Err()
	if err != nil {
		// Ignore "BUSYGROUP" — group already exists
		if !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("xgroup create %s: %w", stream, err)
		}
	}
	return nil
}

// ConsumeTicks reads ticks from the stream using the consumer group.
// Blocks on XREADGROUP and sends parsed ticks to the output channel.
// Returns when ctx is cancelled.
func (r *Reader) ConsumeTicks(ctx context.Context, stream string, out chan<- model.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		results, err := r.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    r.consumerGroup,
			Consumer: r.consumerName,
			Streams:  []string{stream, ">"},
			Count:    100,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if err == goredis.Nil || ctx.Err() != nil {
				continue
			}
			log.Printf("[redis-reader] xreadgroup error: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, str := range results {
			for _, msg := range str.Messages {
				data, ok := msg.Values["data"].(string)
				if !ok {
					continue
				}

				var tick model.Tick
				if err := json.Unmarshal([]byte(data), &tick); err != nil {
					log.Printf("[redis-reader] unmarshal tick error: %v", err)
					// ACK even on bad message to avoid poison pill
					r.client.XAck(ctx, str.Stream, r.consumerGroup, msg.ID)
					continue
				}

				select {
				case out <- tick:
				case <-ctx.Done():
					return ctx.Err()
				}

				// ACK after successful processing
				r.client.XAck(ctx, str.Stream, r.consumerGroup, msg.ID)
			}
		}
	}
}

// LatestPrice reads the latest-price key for an instrument.
// Returns 0, nil if the key is absent or expired.
func (r *Reader) LatestPrice(ctx context.Context, venue, symbol string) (float64, error) {
	v, err := r.client.Get(ctx, "price:latest:"+venue+":"+symbol).Float64()
	if err == goredis.Nil {
		return 0, nil
	}
	return v, err
}

// Close closes the Redis connection.
func (r *Reader) Close() error {
	return r.client.Close()
}
