package portfolio

import (
	"math"
	"testing"

	"meanrev-systemv1/internal/model"
)

var eurusd = model.Instrument{
	Symbol:        "EURUSD",
	Venue:         "OANDA",
	BaseCurrency:  "EUR",
	QuoteCurrency: "USD",
	PipSize:       0.0001,
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s: expected %.6f, got %.6f", name, want, got)
	}
}

func TestAccount_StartsFlat(t *testing.T) {
	a := New(eurusd, 100000)
	if a.Invested() {
		t.Fatal("new account should not be invested")
	}
	approx(t, "equity", a.Equity(), 100000)
	approx(t, "realized", a.RealizedPnL(), 0)
}

func TestAccount_BuyThenSellRealizesPnL(t *testing.T) {
	a := New(eurusd, 100000)

	a.ApplyFill(model.SideBuy, 90000, 1.1000)
	if !a.Invested() {
		t.Fatal("expected invested after buy")
	}
	approx(t, "cash after buy", a.Snapshot().Cash, 100000-90000*1.1)

	a.MarkPrice(1.1050)
	approx(t, "unrealized", a.UnrealizedPnL(), 90000*0.0050)

	a.ApplyFill(model.SideSell, 90000, 1.1050)
	if a.Invested() {
		t.Fatal("expected flat after full close")
	}
	approx(t, "realized", a.RealizedPnL(), 90000*0.0050)
	approx(t, "equity", a.Equity(), 100000+90000*0.0050)
}

func TestAccount_WeightedAverageEntry(t *testing.T) {
	a := New(eurusd, 1000000)
	a.ApplyFill(model.SideBuy, 100, 1.10)
	a.ApplyFill(model.SideBuy, 100, 1.20)

	view := a.Snapshot()
	approx(t, "avg price", view.AvgPrice, 1.15)
	if view.Units != 200 {
		t.Errorf("expected 200 units, got %d", view.Units)
	}
}

func TestAccount_SellCappedAtPosition(t *testing.T) {
	a := New(eurusd, 100000)
	a.ApplyFill(model.SideBuy, 50, 1.10)
	a.ApplyFill(model.SideSell, 500, 1.20) // oversell is clamped

	if a.Invested() {
		t.Fatal("expected flat after clamped sell")
	}
	approx(t, "realized", a.RealizedPnL(), 50*0.10)
}

func TestAccount_SnapshotConsistency(t *testing.T) {
	a := New(eurusd, 100000)
	a.ApplyFill(model.SideBuy, 1000, 1.1000)
	a.MarkPrice(1.1020)

	view := a.Snapshot()
	approx(t, "equity identity", view.Equity, view.Cash+float64(view.Units)*view.LastPrice)
	approx(t, "unrealized identity", view.UnrealizedPnL, float64(view.Units)*(view.LastPrice-view.AvgPrice))
}
