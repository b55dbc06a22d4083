package model

// TickReader reads historical ticks for backfill and replay, decoupling
// the replayer from the concrete SQLite store.
type TickReader interface {
	// ReadTicks reads ticks for an instrument after a Unix timestamp (0 = all).
	ReadTicks(venue, symbol string, afterTS int64) ([]Tick, error)

	// Close releases underlying resources.
	Close() error
}
