// Package replay provides a tick replayer that reads historical data from
// SQLite and emits it at configurable speed for backtesting.
package replay

import (
	"context"
	"log"
	"time"

	"meanrev-systemv1/internal/model"
)

// Replayer reads historical ticks and replays them at a configurable speed
// multiplier.
type Replayer struct {
	reader model.TickReader
}

// New creates a Replayer backed by a tick reader (usually the SQLite store).
func New(reader model.TickReader) *Replayer {
	return &Replayer{reader: reader}
}

// Run replays all ticks for the given instrument, emitting them into outCh.
// speed controls the playback rate: 1.0 = real-time, 10.0 = 10x, 0 = as fast
// as possible. fromTS filters ticks to those after this Unix timestamp (0 = all).
func (r *Replayer) Run(ctx context.Context, venue, symbol string, fromTS int64, speed float64, outCh chan<- model.Tick) error {
	ticks, err := r.reader.ReadTicks(venue, symbol, fromTS)
	if err != nil {
		return err
	}

	if len(ticks) == 0 {
		log.Println("[replay] no ticks found in SQLite")
		return nil
	}

	log.Printf("[replay] loaded %d ticks for %s:%s, speed=%.1fx", len(ticks), venue, symbol, speed)

	var prevTS time.Time
	emitted := 0

	for _, tick := range ticks {
		select {
		case <-ctx.Done():
			log.Printf("[replay] cancelled after %d ticks", emitted)
			return ctx.Err()
		default:
		}

		// Simulate time gaps between ticks
		if speed > 0 && !prevTS.IsZero() {
			gap := tick.TickTS.Sub(prevTS)
			if gap > 0 {
				scaledGap := time.Duration(float64(gap) / speed)
				// Cap max sleep to avoid very long waits
				if scaledGap > 5*time.Second {
					scaledGap = 5 * time.Second
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(scaledGap):
				}
			}
		}
		prevTS = tick.TickTS

		outCh <- tick
		emitted++
	}

	log.Printf("[replay] completed: %d ticks replayed", emitted)
	return nil
}
