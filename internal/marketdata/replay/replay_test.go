package replay

import (
	"context"
	"testing"
	"time"

	"meanrev-systemv1/internal/model"
)

type fakeReader struct {
	ticks []model.Tick
	err   error
}

func (f *fakeReader) ReadTicks(venue, symbol string, afterTS int64) ([]model.Tick, error) {
	return f.ticks, f.err
}

func (f *fakeReader) Close() error { return nil }

func makeTicks(n int) []model.Tick {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ticks := make([]model.Tick, n)
	for i := range ticks {
		ticks[i] = model.Tick{
			Symbol: "EURUSD",
			Venue:  "OANDA",
			Price:  1.07 + float64(i)*0.0001,
			TickTS: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return ticks
}

func TestReplayEmitsAllTicksInOrder(t *testing.T) {
	ticks := makeTicks(25)
	r := New(&fakeReader{ticks: ticks})

	outCh := make(chan model.Tick, 32)
	if err := r.Run(context.Background(), "OANDA", "EURUSD", 0, 0, outCh); err != nil {
		t.Fatalf("replay: %v", err)
	}
	close(outCh)

	got := 0
	var prev time.Time
	for tick := range outCh {
		if tick.TickTS.Before(prev) {
			t.Errorf("tick %d out of order: %v before %v", got, tick.TickTS, prev)
		}
		prev = tick.TickTS
		got++
	}
	if got != len(ticks) {
		t.Errorf("emitted %d ticks, want %d", got, len(ticks))
	}
}

func TestReplayEmptyHistory(t *testing.T) {
	r := New(&fakeReader{})
	outCh := make(chan model.Tick, 1)
	if err := r.Run(context.Background(), "OANDA", "EURUSD", 0, 0, outCh); err != nil {
		t.Fatalf("empty replay should not error: %v", err)
	}
	if len(outCh) != 0 {
		t.Errorf("expected no ticks, got %d buffered", len(outCh))
	}
}
