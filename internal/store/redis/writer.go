package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"meanrev-systemv1/internal/model"
	"meanrev-systemv1/internal/strategy"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: ~3h of 1/min ticks plus buffer
	tickStreamMaxLen = 12000
	defaultLatestTTL = 30 * time.Minute
)

// TickStreamKey returns the tick stream name for an instrument.
func TickStreamKey(venue, symbol string) string {
	return "ticks:" + venue + ":" + symbol
}

// DecisionStreamKey returns the decision stream name for an instrument.
func DecisionStreamKey(venue, symbol string) string {
	return "decisions:" + venue + ":" + symbol
}

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer writes ticks and strategy decisions to Redis Streams.
type Writer struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
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

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// Run reads ticks from tickCh and writes them to Redis.
// Blocks until ctx is cancelled or tickCh is closed.
func (w *Writer) Run(ctx context.Context, tickCh <-chan model.Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-tickCh:
			if !ok {
				return
			}
			w.WriteTick(ctx, tick)
		}
	}
}

// WriteTick XADDs a tick to its stream and refreshes the latest-price key.
func (w *Writer) WriteTick(ctx context.Context, tick model.Tick) {
	data, err := json.Marshal(tick)
	if err != nil {
		return
	}

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: TickStreamKey(tick.Venue, tick.Symbol),
		MaxLen: tickStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	})
	latestKey := "price:latest:" + tick.Venue + ":" + tick.Symbol
	pipe.Set(ctx, latestKey, tick.Price, defaultLatestTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] tick write error: %v", err)
	}
}

// WriteDecision publishes a strategy signal to the decision stream.
// Consumers (dashboards, alerting) read these for an audit trail of every
// actionable evaluation.
func (w *Writer) WriteDecision(ctx context.Context, sig strategy.Signal) {
	data, err := json.Marshal(sig)
	if err != nil {
		return
	}

	err = w.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: DecisionStreamKey(sig.Venue, sig.Symbol),
		MaxLen: tickStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	if err != nil {
		log.Printf("[redis] decision write error: %v", err)
	}
}

// Close closes the Redis connection.
func (w *Writer) Close() error {
	return w.client.Close()
}
