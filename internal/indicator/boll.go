// Package indicator provides technical indicator calculations over streaming
// price data.
//
// Indicators are pure in-memory accumulators: they receive one price per
// scheduled tick and expose their current values through accessors. They are
// designed for single-goroutine usage — no locks needed.
package indicator

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidParameter is returned by constructors for out-of-range
	// parameters (non-positive period or multiplier).
	ErrInvalidParameter = errors.New("indicator: invalid parameter")

	// ErrNotReady is returned by band accessors before the warm-up window
	// has been filled. Callers should skip evaluation until Ready().
	ErrNotReady = errors.New("indicator: not ready")
)

// Band holds the three Bollinger band values at one instant.
type Band struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// recomputeEvery bounds floating-point drift from the incremental sums:
// after this many observations the sums are rebuilt from the raw window.
const recomputeEvery = 1024

// BollingerBand maintains a rolling mean and dispersion envelope over the
// most recent period prices: middle = SMA, upper/lower = middle ± multiplier·σ.
// σ is the population standard deviation (divisor = period, not period-1).
//
// Uses a preallocated circular buffer with incremental sum and sum-of-squares
// for an O(1) zero-allocation hot path. Prices must be finite; NaN/Inf input
// is a caller contract violation and is not validated here.
type BollingerBand struct {
	period     int
	multiplier float64

	buf   []float64 // preallocated circular buffer
	idx   int       // current write position
	count int       // total values received

	sum       float64
	sumSq     float64
	sinceFull int // observations since last full recompute

	band Band
}

// NewBollingerBand creates a Bollinger band indicator. It fails fast on
// non-positive period or multiplier rather than deferring to the first
// Observe call.
func NewBollingerBand(period int, multiplier float64) (*BollingerBand, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive, got %d", ErrInvalidParameter, period)
	}
	if multiplier <= 0 {
		return nil, fmt.Errorf("%w: multiplier must be positive, got %g", ErrInvalidParameter, multiplier)
	}
	return &BollingerBand{
		period:     period,
		multiplier: multiplier,
		buf:        make([]float64, period),
	}, nil
}

// Observe feeds the next price, evicting the oldest when the window is full.
// This is the only mutator.
func (b *BollingerBand) Observe(price float64) {
	if b.count >= b.period {
		// Subtract the oldest value being overwritten
		old := b.buf[b.idx]
		b.sum -= old
		b.sumSq -= old * old
	}

	b.buf[b.idx] = price
	b.sum += price
	b.sumSq += price * price
	b.idx = (b.idx + 1) % b.period
	b.count++

	b.sinceFull++
	if b.sinceFull >= recomputeEvery {
		b.recompute()
	}

	if b.count >= b.period {
		b.refresh()
	}
}

// Ready returns true once at least period observations have been made.
func (b *BollingerBand) Ready() bool { return b.count >= b.period }

// Period returns the lookback window size.
func (b *BollingerBand) Period() int { return b.period }

// Multiplier returns the dispersion scale.
func (b *BollingerBand) Multiplier() float64 { return b.multiplier }

// Bands returns the current band values, or ErrNotReady during warm-up.
// Repeated reads without an intervening Observe return identical values.
func (b *BollingerBand) Bands() (Band, error) {
	if !b.Ready() {
		return Band{}, fmt.Errorf("%w: have %d of %d observations", ErrNotReady, b.count, b.period)
	}
	return b.band, nil
}

// Middle returns the rolling mean, or ErrNotReady during warm-up.
func (b *BollingerBand) Middle() (float64, error) {
	band, err := b.Bands()
	return band.Middle, err
}

// Upper returns mean + multiplier·σ, or ErrNotReady during warm-up.
func (b *BollingerBand) Upper() (float64, error) {
	band, err := b.Bands()
	return band.Upper, err
}

// Lower returns mean - multiplier·σ, or ErrNotReady during warm-up.
func (b *BollingerBand) Lower() (float64, error) {
	band, err := b.Bands()
	return band.Lower, err
}

// Reset clears all state for reuse.
func (b *BollingerBand) Reset() {
	b.idx = 0
	b.count = 0
	b.sum = 0
	b.sumSq = 0
	b.sinceFull = 0
	b.band = Band{}
	for i := range b.buf {
		b.buf[i] = 0
	}
}

// refresh recomputes the cached band from the incremental sums.
func (b *BollingerBand) refresh() {
	n := float64(b.period)
	mean := b.sum / n
	variance := b.sumSq/n - mean*mean
	if variance < 0 {
		// Cancellation noise on near-constant windows
		variance = 0
	}
	dev := b.multiplier * math.Sqrt(variance)
	b.band = Band{
		Upper:  mean + dev,
		Middle: mean,
		Lower:  mean - dev,
	}
}

// recompute rebuilds sum and sumSq from the raw window, discarding
// accumulated floating-point error from the incremental updates.
func (b *BollingerBand) recompute() {
	n := b.count
	if n > b.period {
		n = b.period
	}
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		v := b.buf[i]
		sum += v
		sumSq += v * v
	}
	b.sum = sum
	b.sumSq = sumSq
	b.sinceFull = 0
}
