package model

// Instrument represents a tradeable currency pair.
type Instrument struct {
	Symbol        string  `json:"symbol"` // e.g. "EURUSD"
	Venue         string  `json:"venue"`  // e.g. "OANDA"
	BaseCurrency  string  `json:"base_currency"`
	QuoteCurrency string  `json:"quote_currency"`
	PipSize       float64 `json:"pip_size"` // minimum quote increment, e.g. 0.0001
}

// Key returns a unique key for this instrument: "venue:symbol".
func (i *Instrument) Key() string {
	return i.Venue + ":" + i.Symbol
}
