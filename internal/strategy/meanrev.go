package strategy

import (
	"fmt"

	"meanrev-systemv1/internal/indicator"
	"meanrev-systemv1/internal/model"
)

// PositionReader reports whether the strategy currently holds a position.
// Implemented by portfolio.Account; owned and mutated by the execution side.
type PositionReader interface {
	Invested() bool
}

// MeanReversion implements a Bollinger band mean-reversion strategy.
//
// Entry: price falls below the lower band while flat.
// Exit: price reverts above the middle band while invested.
//
// The indicator warms up over the first period ticks; no signals are emitted
// until the band is ready.
type MeanReversion struct {
	name      string
	band      *indicator.BollingerBand
	positions PositionReader

	// OnEvaluate, if set, is called after each evaluation with the price,
	// the band values used, and the resulting decision. Called from the
	// tick goroutine; keep it cheap.
	OnEvaluate func(price float64, band indicator.Band, decision Decision)
}

// NewMeanReversion creates a mean-reversion strategy around an existing band
// indicator. positions supplies the invested flag before each evaluation.
func NewMeanReversion(band *indicator.BollingerBand, positions PositionReader) *MeanReversion {
	return &MeanReversion{
		name:      "BB_MeanReversion",
		band:      band,
		positions: positions,
	}
}

func (s *MeanReversion) Name() string {
	return s.name
}

// Band exposes the underlying indicator for snapshotting and metrics.
func (s *MeanReversion) Band() *indicator.BollingerBand {
	return s.band
}

func (s *MeanReversion) OnTick(tick model.Tick) *Signal {
	s.band.Observe(tick.Price)
	if !s.band.Ready() {
		return nil
	}

	band, err := s.band.Bands()
	if err != nil {
		// Unreachable after the Ready check; kept for the accessor contract.
		return nil
	}

	decision := Evaluate(tick.Price, band, s.positions.Invested())
	if s.OnEvaluate != nil {
		s.OnEvaluate(tick.Price, band, decision)
	}

	switch decision {
	case DecisionEnter:
		return &Signal{
			StrategyName: s.name,
			Decision:     DecisionEnter,
			Symbol:       tick.Symbol,
			Venue:        tick.Venue,
			Price:        tick.Price,
			Reason:       fmt.Sprintf("price %.5f < lower band %.5f", tick.Price, band.Lower),
		}
	case DecisionExit:
		return &Signal{
			StrategyName: s.name,
			Decision:     DecisionExit,
			Symbol:       tick.Symbol,
			Venue:        tick.Venue,
			Price:        tick.Price,
			Reason:       fmt.Sprintf("price %.5f > middle band %.5f", tick.Price, band.Middle),
		}
	default:
		return nil
	}
}
