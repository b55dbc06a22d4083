package execution

import (
	"context"
	"math"
	"testing"

	"meanrev-systemv1/internal/model"
	"meanrev-systemv1/internal/portfolio"
	"meanrev-systemv1/internal/strategy"
)

var eurusd = model.Instrument{
	Symbol: "EURUSD",
	Venue:  "OANDA",
}

func enterSignal(price float64) strategy.Signal {
	return strategy.Signal{
		StrategyName: "BB_MeanReversion",
		Decision:     strategy.DecisionEnter,
		Symbol:       "EURUSD",
		Venue:        "OANDA",
		Price:        price,
		Reason:       "test entry",
	}
}

func exitSignal(price float64) strategy.Signal {
	return strategy.Signal{
		StrategyName: "BB_MeanReversion",
		Decision:     strategy.DecisionExit,
		Symbol:       "EURUSD",
		Venue:        "OANDA",
		Price:        price,
		Reason:       "test exit",
	}
}

func TestPaperExecutor_FullAllocationEntry(t *testing.T) {
	account := portfolio.New(eurusd, 100000)
	exec := NewPaperExecutor(account, 1.0, 0, 16)

	exec.Execute(enterSignal(1.1000))

	if !account.Invested() {
		t.Fatal("expected invested after ENTER")
	}
	wantUnits := int64(math.Floor(100000 / 1.1000))
	if got := account.Units(); got != wantUnits {
		t.Errorf("expected %d units, got %d", wantUnits, got)
	}

	select {
	case res := <-exec.Results():
		if res.Status != "FILLED" {
			t.Errorf("expected FILLED, got %s (%s)", res.Status, res.Message)
		}
	default:
		t.Fatal("expected an order result")
	}
}

func TestPaperExecutor_PartialAllocation(t *testing.T) {
	account := portfolio.New(eurusd, 100000)
	exec := NewPaperExecutor(account, 0.5, 0, 16)

	exec.Execute(enterSignal(1.2500))

	wantUnits := int64(math.Floor(0.5 * 100000 / 1.2500))
	if got := account.Units(); got != wantUnits {
		t.Errorf("expected %d units, got %d", wantUnits, got)
	}
}

func TestPaperExecutor_ExitClosesWholePosition(t *testing.T) {
	account := portfolio.New(eurusd, 100000)
	exec := NewPaperExecutor(account, 1.0, 0, 16)

	exec.Execute(enterSignal(1.1000))
	<-exec.Results()
	exec.Execute(exitSignal(1.1100))

	if account.Invested() {
		t.Fatal("expected flat after EXIT")
	}
	if account.RealizedPnL() <= 0 {
		t.Errorf("expected positive realized PnL selling above entry, got %.4f", account.RealizedPnL())
	}
	if len(exec.Fills()) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(exec.Fills()))
	}
}

func TestPaperExecutor_DuplicateEntryRejected(t *testing.T) {
	account := portfolio.New(eurusd, 100000)
	exec := NewPaperExecutor(account, 1.0, 0, 16)

	exec.Execute(enterSignal(1.1000))
	<-exec.Results()
	unitsAfterFirst := account.Units()

	exec.Execute(enterSignal(1.0900))

	select {
	case res := <-exec.Results():
		if res.Status != "REJECTED" {
			t.Errorf("expected REJECTED on second entry, got %s", res.Status)
		}
	default:
		t.Fatal("expected an order result")
	}
	if got := account.Units(); got != unitsAfterFirst {
		t.Errorf("position changed on rejected entry: %d -> %d", unitsAfterFirst, got)
	}
}

func TestPaperExecutor_ExitWithoutPositionRejected(t *testing.T) {
	account := portfolio.New(eurusd, 100000)
	exec := NewPaperExecutor(account, 1.0, 0, 16)

	exec.Execute(exitSignal(1.1000))

	select {
	case res := <-exec.Results():
		if res.Status != "REJECTED" {
			t.Errorf("expected REJECTED, got %s", res.Status)
		}
	default:
		t.Fatal("expected an order result")
	}
	if len(exec.Fills()) != 0 {
		t.Errorf("expected no fills, got %d", len(exec.Fills()))
	}
}

func TestPaperExecutor_SlippageDirection(t *testing.T) {
	account := portfolio.New(eurusd, 100000)
	exec := NewPaperExecutor(account, 1.0, 10, 16) // 10 bps

	exec.Execute(enterSignal(1.0000))
	fills := exec.Fills()
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if fills[0].FillPrice <= 1.0000 {
		t.Errorf("buy slippage must raise fill price, got %.5f", fills[0].FillPrice)
	}

	exec.Execute(exitSignal(1.0000))
	fills = exec.Fills()
	if fills[1].FillPrice >= 1.0000 {
		t.Errorf("sell slippage must lower fill price, got %.5f", fills[1].FillPrice)
	}
}

func TestPaperExecutor_RunConsumesChannel(t *testing.T) {
	account := portfolio.New(eurusd, 100000)
	exec := NewPaperExecutor(account, 1.0, 0, 16)

	sigCh := make(chan strategy.Signal, 2)
	sigCh <- enterSignal(1.1000)
	sigCh <- exitSignal(1.1100)
	close(sigCh)

	exec.Run(context.Background(), sigCh)

	if account.Invested() {
		t.Fatal("expected flat after enter+exit")
	}
	if len(exec.Fills()) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(exec.Fills()))
	}
}
