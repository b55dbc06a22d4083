package execution

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"meanrev-systemv1/internal/model"
	"meanrev-systemv1/internal/portfolio"
	"meanrev-systemv1/internal/strategy"
)

// PaperExecutor simulates order execution without real broker calls.
// Useful for backtesting and paper trading.
//
// Sizing follows the strategy's contract: ENTER buys
// floor(allocation · equity / price) units; EXIT closes the whole position.
type PaperExecutor struct {
	mu       sync.RWMutex
	account  *portfolio.Account
	fills    []Fill
	resultCh chan OrderResult
	orderSeq int64

	// Simulation parameters
	allocation  float64 // fraction of equity committed per entry (0, 1]
	slippageBps float64 // basis points of slippage (e.g. 5 = 0.05%)
}

// NewPaperExecutor creates a paper trading executor against the given account.
// allocation is the equity fraction for entries; slippageBps controls
// simulated slippage in basis points.
func NewPaperExecutor(account *portfolio.Account, allocation, slippageBps float64, resultBufferSize int) *PaperExecutor {
	return &PaperExecutor{
		account:     account,
		fills:       make([]Fill, 0, 1000),
		resultCh:    make(chan OrderResult, resultBufferSize),
		allocation:  allocation,
		slippageBps: slippageBps,
	}
}

// Results returns the channel of order results.
func (p *PaperExecutor) Results() <-chan OrderResult {
	return p.resultCh
}

// Fills returns a snapshot of all fills.
func (p *PaperExecutor) Fills() []Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// Run consumes strategy signals and simulates execution.
func (p *PaperExecutor) Run(ctx context.Context, signalCh <-chan strategy.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signalCh:
			if !ok {
				return
			}
			p.Execute(sig)
		}
	}
}

// Execute processes a single signal synchronously. Backtests call this
// directly so fills apply before the next tick is evaluated.
func (p *PaperExecutor) Execute(sig strategy.Signal) {
	switch sig.Decision {
	case strategy.DecisionEnter:
		p.enter(sig)
	case strategy.DecisionExit:
		p.exit(sig)
	default:
		p.emit(OrderResult{Status: "REJECTED", Message: "no actionable decision", Signal: sig})
	}
}

func (p *PaperExecutor) enter(sig strategy.Signal) {
	if p.account.Invested() {
		p.emit(OrderResult{Status: "REJECTED", Message: "already invested", Signal: sig})
		return
	}

	fillPrice := sig.Price
	slip := 0.0
	if p.slippageBps > 0 {
		slip = fillPrice * p.slippageBps / 10000
		fillPrice += slip // buy higher
	}

	units := int64(math.Floor(p.allocation * p.account.Equity() / fillPrice))
	if units <= 0 {
		p.emit(OrderResult{Status: "REJECTED", Message: "insufficient equity for entry", Signal: sig})
		return
	}

	p.account.ApplyFill(model.SideBuy, units, fillPrice)
	p.record(sig, model.SideBuy, units, fillPrice, slip)
}

func (p *PaperExecutor) exit(sig strategy.Signal) {
	units := p.account.Units()
	if units <= 0 {
		p.emit(OrderResult{Status: "REJECTED", Message: "no position to close", Signal: sig})
		return
	}

	fillPrice := sig.Price
	slip := 0.0
	if p.slippageBps > 0 {
		slip = fillPrice * p.slippageBps / 10000
		fillPrice -= slip // sell lower
	}

	p.account.ApplyFill(model.SideSell, units, fillPrice)
	p.record(sig, model.SideSell, units, fillPrice, slip)
}

func (p *PaperExecutor) record(sig strategy.Signal, side model.Side, units int64, fillPrice, slip float64) {
	p.mu.Lock()
	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)
	fill := Fill{
		OrderID:   orderID,
		Signal:    sig,
		Side:      side,
		Units:     units,
		FillPrice: fillPrice,
		Slippage:  slip,
		FilledAt:  time.Now().UTC(),
	}
	p.fills = append(p.fills, fill)
	p.mu.Unlock()

	log.Printf("[paper] %s %s %s:%s units=%d price=%.5f (slip=%.5f) order=%s reason=%s",
		side, sig.StrategyName, sig.Venue, sig.Symbol,
		units, fillPrice, slip, orderID, sig.Reason)

	p.emit(OrderResult{
		OrderID: orderID,
		Status:  "FILLED",
		Message: fmt.Sprintf("paper filled %d units at %.5f", units, fillPrice),
		Signal:  sig,
	})
}

func (p *PaperExecutor) emit(r OrderResult) {
	select {
	case p.resultCh <- r:
	default:
		// result channel full, drop
	}
}
