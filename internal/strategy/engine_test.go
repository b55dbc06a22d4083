package strategy

import (
	"context"
	"testing"
	"time"

	"meanrev-systemv1/internal/indicator"
	"meanrev-systemv1/internal/model"
)

// fakePositions is a controllable PositionReader for tests.
type fakePositions struct {
	invested bool
}

func (f *fakePositions) Invested() bool { return f.invested }

func makeTick(symbol string, price float64) model.Tick {
	return model.Tick{
		Symbol: symbol,
		Venue:  "OANDA",
		Price:  price,
		TickTS: time.Now().UTC(),
	}
}

func newTestStrategy(t *testing.T, period int, pos *fakePositions) *MeanReversion {
	t.Helper()
	bb, err := indicator.NewBollingerBand(period, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	return NewMeanReversion(bb, pos)
}

func TestMeanReversion_NoSignalDuringWarmup(t *testing.T) {
	pos := &fakePositions{}
	s := newTestStrategy(t, 5, pos)

	// Even wildly dislocated prices must not signal before warm-up completes
	for i := 0; i < 4; i++ {
		if sig := s.OnTick(makeTick("EURUSD", 0.0001)); sig != nil {
			t.Fatalf("tick %d: signal during warm-up: %+v", i, sig)
		}
	}
}

func TestMeanReversion_EntrySignal(t *testing.T) {
	pos := &fakePositions{}
	s := newTestStrategy(t, 10, pos)

	for i := 0; i < 10; i++ {
		s.OnTick(makeTick("EURUSD", 10))
	}

	// Window [10×9, 5]: mean 9.5, σ 1.5, lower band 6.5 — 5 is below it.
	// The evaluated price is part of the window, so the dislocation must be
	// large enough to clear the band it widens.
	sig := s.OnTick(makeTick("EURUSD", 5))
	if sig == nil {
		t.Fatal("expected ENTER signal")
	}
	if sig.Decision != DecisionEnter {
		t.Errorf("expected ENTER, got %s", sig.Decision)
	}
	if sig.Symbol != "EURUSD" || sig.Venue != "OANDA" {
		t.Errorf("instrument not carried through: %+v", sig)
	}
	if sig.Price != 5 {
		t.Errorf("expected decision price 5, got %g", sig.Price)
	}
}

func TestMeanReversion_ExitSignal(t *testing.T) {
	pos := &fakePositions{invested: true}
	s := newTestStrategy(t, 3, pos)

	for _, p := range []float64{10, 10, 10} {
		s.OnTick(makeTick("EURUSD", p))
	}

	// Middle stays near 10; 12 is above it while invested
	sig := s.OnTick(makeTick("EURUSD", 12))
	if sig == nil {
		t.Fatal("expected EXIT signal")
	}
	if sig.Decision != DecisionExit {
		t.Errorf("expected EXIT, got %s", sig.Decision)
	}
}

func TestMeanReversion_HoldEmitsNothing(t *testing.T) {
	pos := &fakePositions{}
	s := newTestStrategy(t, 3, pos)

	for _, p := range []float64{10, 10, 10} {
		s.OnTick(makeTick("EURUSD", p))
	}
	if sig := s.OnTick(makeTick("EURUSD", 10)); sig != nil {
		t.Fatalf("expected no signal at the mean, got %+v", sig)
	}
}

func TestMeanReversion_OnEvaluateHook(t *testing.T) {
	pos := &fakePositions{}
	s := newTestStrategy(t, 10, pos)

	var decisions []Decision
	s.OnEvaluate = func(price float64, band indicator.Band, d Decision) {
		decisions = append(decisions, d)
	}

	// 9 warm-up ticks fire nothing; the last two evaluate
	for i := 0; i < 10; i++ {
		s.OnTick(makeTick("EURUSD", 10))
	}
	s.OnTick(makeTick("EURUSD", 5))

	want := []Decision{DecisionHold, DecisionEnter}
	if len(decisions) != len(want) {
		t.Fatalf("hook fired %d times, want %d", len(decisions), len(want))
	}
	for i, d := range want {
		if decisions[i] != d {
			t.Errorf("evaluation %d = %s, want %s", i, decisions[i], d)
		}
	}
}

func TestEngine_ReportsTickProcessingTime(t *testing.T) {
	pos := &fakePositions{}
	s := newTestStrategy(t, 3, pos)

	engine := NewEngine(16)
	engine.Register(s)

	observed := 0
	engine.OnTickProcessed = func(d time.Duration) {
		if d < 0 {
			t.Errorf("negative duration %v", d)
		}
		observed++
	}

	tickCh := make(chan model.Tick, 4)
	for _, p := range []float64{10, 10, 10} {
		tickCh <- makeTick("EURUSD", p)
	}
	close(tickCh)
	engine.Run(context.Background(), tickCh)

	if observed != 3 {
		t.Errorf("hook fired %d times, want 3", observed)
	}
}

func TestEngine_RoutesSignals(t *testing.T) {
	pos := &fakePositions{}
	s := newTestStrategy(t, 10, pos)

	engine := NewEngine(16)
	engine.Register(s)

	tickCh := make(chan model.Tick, 16)
	go func() {
		for i := 0; i < 10; i++ {
			tickCh <- makeTick("EURUSD", 10)
		}
		tickCh <- makeTick("EURUSD", 5)
		close(tickCh)
	}()

	engine.Run(context.Background(), tickCh)

	select {
	case sig := <-engine.Signals():
		if sig.Decision != DecisionEnter {
			t.Errorf("expected ENTER, got %s", sig.Decision)
		}
		if sig.StrategyName != s.Name() {
			t.Errorf("expected strategy name %q, got %q", s.Name(), sig.StrategyName)
		}
	default:
		t.Fatal("expected a signal on the engine channel")
	}
}

func TestEngine_StopsOnContextCancel(t *testing.T) {
	engine := NewEngine(1)
	tickCh := make(chan model.Tick)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		engine.Run(ctx, tickCh)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop on context cancel")
	}
}
