// Package strategy provides the strategy engine for running trading strategies.
//
// A Strategy receives market data ticks and emits trading signals
// (ENTER/EXIT). The Engine manages strategy lifecycle: registration, data
// routing, and signal collection.
package strategy

import (
	"context"
	"time"

	"meanrev-systemv1/internal/model"
)

// Signal represents a trading signal emitted by a strategy.
type Signal struct {
	StrategyName string   `json:"strategy_name"`
	Decision     Decision `json:"decision"` // ENTER or EXIT; HOLD emits no signal
	Symbol       string   `json:"symbol"`
	Venue        string   `json:"venue"`
	Price        float64  `json:"price"` // price at decision time
	Reason       string   `json:"reason"`
}

// Strategy is the interface that all trading strategies must implement.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// OnTick is called once per scheduled tick with the latest price.
	// Return a Signal if the strategy wants to act, or nil to hold.
	OnTick(tick model.Tick) *Signal
}

// Engine manages registered strategies and routes market data to them.
type Engine struct {
	strategies []Strategy
	signalCh   chan Signal

	// OnTickProcessed, if set, is called with the time spent routing each
	// tick through all strategies.
	OnTickProcessed func(time.Duration)
}

// NewEngine creates a new strategy engine.
func NewEngine(signalBufferSize int) *Engine {
	return &Engine{
		signalCh: make(chan Signal, signalBufferSize),
	}
}

// Register adds a strategy to the engine.
func (e *Engine) Register(s Strategy) {
	e.strategies = append(e.strategies, s)
}

// Signals returns the channel of signals emitted by strategies.
func (e *Engine) Signals() <-chan Signal {
	return e.signalCh
}

// Run consumes ticks and routes them to all registered strategies.
// Ticks are delivered strictly sequentially — one OnTick at a time — so
// strategies need no internal locking. Blocks until ctx is cancelled or
// tickCh is closed.
func (e *Engine) Run(ctx context.Context, tickCh <-chan model.Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-tickCh:
			if !ok {
				return
			}
			start := time.Now()
			for _, s := range e.strategies {
				if sig := s.OnTick(tick); sig != nil {
					select {
					case e.signalCh <- *sig:
					default:
						// signal channel full, drop
					}
				}
			}
			if e.OnTickProcessed != nil {
				e.OnTickProcessed(time.Since(start))
			}
		}
	}
}
