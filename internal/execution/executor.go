// Package execution translates strategy signals into orders.
//
// Executors receive signals from the strategy engine, size them against the
// account, and produce fills. PaperExecutor simulates fills locally;
// BrokerExecutor routes orders through the broker REST API.
package execution

import (
	"context"
	"time"

	"meanrev-systemv1/internal/model"
	"meanrev-systemv1/internal/strategy"
)

// OrderResult represents the outcome of an order placement.
type OrderResult struct {
	OrderID string          `json:"order_id"`
	Status  string          `json:"status"` // FILLED, REJECTED, ERROR
	Message string          `json:"message"`
	Signal  strategy.Signal `json:"signal"`
}

// Fill represents an executed order.
type Fill struct {
	OrderID   string          `json:"order_id"`
	Signal    strategy.Signal `json:"signal"`
	Side      model.Side      `json:"side"`
	Units     int64           `json:"units"`
	FillPrice float64         `json:"fill_price"`
	Slippage  float64         `json:"slippage"` // price adjustment applied, in quote currency
	FilledAt  time.Time       `json:"filled_at"`
}

// Executor consumes strategy signals and places orders.
type Executor interface {
	// Run consumes signals until ctx is cancelled or signalCh is closed.
	Run(ctx context.Context, signalCh <-chan strategy.Signal)

	// Results returns the channel of order results.
	Results() <-chan OrderResult
}
