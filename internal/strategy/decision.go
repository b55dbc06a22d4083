package strategy

import "meanrev-systemv1/internal/indicator"

// Decision is the outcome of evaluating the trading rule on one tick.
type Decision string

const (
	DecisionEnter Decision = "ENTER"
	DecisionExit  Decision = "EXIT"
	DecisionHold  Decision = "HOLD"
)

// Evaluate applies the one-sided mean-reversion rule to the current price,
// band, and position state, in priority order:
//
//  1. Not invested and price below the lower band → ENTER.
//  2. Invested and price above the middle band → EXIT.
//  3. Otherwise → HOLD.
//
// The exit threshold is the MIDDLE band, not the upper band: this is a
// revert-to-mean rule, not a symmetric channel breakout. Evaluate is pure and
// stateless; the same inputs always yield the same decision. All real-valued
// inputs are valid — NaN/Inf prices are a caller contract violation.
func Evaluate(price float64, band indicator.Band, invested bool) Decision {
	switch {
	case !invested && price < band.Lower:
		return DecisionEnter
	case invested && price > band.Middle:
		return DecisionExit
	default:
		return DecisionHold
	}
}
