package model

import "time"

// Tick represents a single market data tick for one instrument.
// Price is the latest traded/quoted price as a float64; forex quotes carry
// up to five decimals, so fixed-point paise-style storage is not used here.
type Tick struct {
	Symbol string    `json:"symbol"`
	Venue  string    `json:"venue"`
	Price  float64   `json:"price"`
	TickTS time.Time `json:"tick_ts"` // UTC timestamp
}

// Key returns a unique key for the tick's instrument: "venue:symbol".
func (t *Tick) Key() string {
	return t.Venue + ":" + t.Symbol
}
