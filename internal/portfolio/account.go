// Package portfolio tracks the trading account: cash, the open position,
// and P&L.
//
// The account is the single source of truth for the invested flag the
// strategy reads before each evaluation. It is mutated only by the execution
// side in response to fills; readers (strategy, metrics, notifications) see
// a consistent view through the RWMutex.
package portfolio

import (
	"sync"

	"meanrev-systemv1/internal/model"
)

// View is a point-in-time snapshot of the account.
type View struct {
	Symbol        string  `json:"symbol"`
	Venue         string  `json:"venue"`
	Cash          float64 `json:"cash"`
	Units         int64   `json:"units"`
	AvgPrice      float64 `json:"avg_price"`
	LastPrice     float64 `json:"last_price"`
	Equity        float64 `json:"equity"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// Account is a single-instrument trading book.
type Account struct {
	mu         sync.RWMutex
	instrument model.Instrument

	cash      float64 // in quote currency
	units     int64   // positive = long; this strategy never shorts
	avgPrice  float64 // average entry price
	lastPrice float64 // latest mark

	realizedPnL float64
}

// New creates an account for one instrument with the given starting cash.
func New(instrument model.Instrument, startingCash float64) *Account {
	return &Account{
		instrument: instrument,
		cash:       startingCash,
	}
}

// Invested reports whether the account holds a nonzero position.
func (a *Account) Invested() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.units != 0
}

// Units returns the current position size.
func (a *Account) Units() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.units
}

// MarkPrice updates the latest market price used for equity and
// unrealized P&L.
func (a *Account) MarkPrice(price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastPrice = price
}

// Equity returns cash plus the marked value of the open position.
func (a *Account) Equity() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.equityLocked()
}

func (a *Account) equityLocked() float64 {
	return a.cash + float64(a.units)*a.lastPrice
}

// ApplyFill applies an executed fill to the book.
// BUY increases the position at a weighted average price; SELL reduces it
// and realizes P&L against the average entry.
func (a *Account) ApplyFill(side model.Side, units int64, price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch side {
	case model.SideBuy:
		total := float64(a.units)*a.avgPrice + float64(units)*price
		a.units += units
		if a.units != 0 {
			a.avgPrice = total / float64(a.units)
		}
		a.cash -= float64(units) * price
	case model.SideSell:
		if units > a.units {
			units = a.units // cannot sell more than held
		}
		a.realizedPnL += float64(units) * (price - a.avgPrice)
		a.units -= units
		a.cash += float64(units) * price
		if a.units == 0 {
			a.avgPrice = 0
		}
	}
	a.lastPrice = price
}

// RealizedPnL returns cumulative realized P&L.
func (a *Account) RealizedPnL() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.realizedPnL
}

// UnrealizedPnL returns mark-to-market P&L on the open position.
func (a *Account) UnrealizedPnL() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return float64(a.units) * (a.lastPrice - a.avgPrice)
}

// Snapshot returns a consistent view of the whole account.
func (a *Account) Snapshot() View {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return View{
		Symbol:        a.instrument.Symbol,
		Venue:         a.instrument.Venue,
		Cash:          a.cash,
		Units:         a.units,
		AvgPrice:      a.avgPrice,
		LastPrice:     a.lastPrice,
		Equity:        a.equityLocked(),
		RealizedPnL:   a.realizedPnL,
		UnrealizedPnL: float64(a.units) * (a.lastPrice - a.avgPrice),
	}
}
