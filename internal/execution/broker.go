package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"meanrev-systemv1/internal/model"
	"meanrev-systemv1/internal/portfolio"
	"meanrev-systemv1/internal/strategy"
	"meanrev-systemv1/pkg/brokerclient"
)

// BrokerExecutor places real orders through the broker REST API.
// Sizing matches PaperExecutor: full allocation on entry, full close on exit.
// Confirmed fills are applied to the account so the invested flag stays in
// sync with the broker.
type BrokerExecutor struct {
	client     *brokerclient.Client
	account    *portfolio.Account
	allocation float64

	mu       sync.RWMutex
	fills    []Fill
	resultCh chan OrderResult
}

// NewBrokerExecutor creates an executor that routes orders to the broker.
func NewBrokerExecutor(client *brokerclient.Client, account *portfolio.Account, allocation float64, resultBufferSize int) *BrokerExecutor {
	return &BrokerExecutor{
		client:     client,
		account:    account,
		allocation: allocation,
		fills:      make([]Fill, 0, 1000),
		resultCh:   make(chan OrderResult, resultBufferSize),
	}
}

// Results returns the channel of order results.
func (b *BrokerExecutor) Results() <-chan OrderResult {
	return b.resultCh
}

// Fills returns a snapshot of all fills.
func (b *BrokerExecutor) Fills() []Fill {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cp := make([]Fill, len(b.fills))
	copy(cp, b.fills)
	return cp
}

// Run consumes strategy signals and places broker orders.
func (b *BrokerExecutor) Run(ctx context.Context, signalCh <-chan strategy.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signalCh:
			if !ok {
				return
			}
			b.executeSignal(ctx, sig)
		}
	}
}

func (b *BrokerExecutor) executeSignal(ctx context.Context, sig strategy.Signal) {
	var place func() (brokerclient.OrderConfirmation, error)
	var side model.Side

	switch sig.Decision {
	case strategy.DecisionEnter:
		if b.account.Invested() {
			b.emit(OrderResult{Status: "REJECTED", Message: "already invested", Signal: sig})
			return
		}
		units := int64(math.Floor(b.allocation * b.account.Equity() / sig.Price))
		if units <= 0 {
			b.emit(OrderResult{Status: "REJECTED", Message: "insufficient equity for entry", Signal: sig})
			return
		}
		side = model.SideBuy
		place = func() (brokerclient.OrderConfirmation, error) {
			return b.client.PlaceMarketOrder(ctx, sig.Symbol, string(model.SideBuy), units)
		}
	case strategy.DecisionExit:
		if !b.account.Invested() {
			b.emit(OrderResult{Status: "REJECTED", Message: "no position to close", Signal: sig})
			return
		}
		side = model.SideSell
		place = func() (brokerclient.OrderConfirmation, error) {
			return b.client.ClosePosition(ctx, sig.Symbol)
		}
	default:
		b.emit(OrderResult{Status: "REJECTED", Message: "no actionable decision", Signal: sig})
		return
	}

	conf, err := place()
	if errors.Is(err, brokerclient.ErrSessionExpired) {
		// One re-login, then a single retry of the same order.
		log.Printf("[executor] session expired, re-authenticating")
		if lerr := b.client.Login(ctx); lerr == nil {
			conf, err = place()
		}
	}
	if err != nil {
		log.Printf("[executor] order failed: %s %s: %v", sig.Decision, sig.Symbol, err)
		b.emit(OrderResult{Status: "ERROR", Message: err.Error(), Signal: sig})
		return
	}

	fillPrice := conf.FillPrice
	if fillPrice == 0 {
		fillPrice = sig.Price // broker omitted fill price, assume decision price
	}
	units := conf.Units
	if units < 0 {
		units = -units // close confirmations report signed units
	}

	b.account.ApplyFill(side, units, fillPrice)

	b.mu.Lock()
	fill := Fill{
		OrderID:   conf.OrderID,
		Signal:    sig,
		Side:      side,
		Units:     units,
		FillPrice: fillPrice,
		FilledAt:  time.Now().UTC(),
	}
	b.fills = append(b.fills, fill)
	b.mu.Unlock()

	log.Printf("[executor] %s %s:%s units=%d price=%.5f order=%s",
		side, sig.Venue, sig.Symbol, units, fillPrice, conf.OrderID)

	b.emit(OrderResult{
		OrderID: conf.OrderID,
		Status:  "FILLED",
		Message: fmt.Sprintf("filled %d units at %.5f", units, fillPrice),
		Signal:  sig,
	})
}

func (b *BrokerExecutor) emit(r OrderResult) {
	select {
	case b.resultCh <- r:
	default:
		// result channel full, drop
	}
}
