// cmd/backtest replays historical ticks from SQLite through the band
// indicator and signal evaluation to validate the strategy without live
// market data.
//
// Usage:
//
//	go run ./cmd/backtest --db=data/ticks.db --symbol=EURUSD --speed=0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"meanrev-systemv1/internal/execution"
	"meanrev-systemv1/internal/indicator"
	"meanrev-systemv1/internal/marketdata/replay"
	"meanrev-systemv1/internal/model"
	"meanrev-systemv1/internal/portfolio"
	sqlitestore "meanrev-systemv1/internal/store/sqlite"
	"meanrev-systemv1/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	dbPath := flag.String("db", "data/ticks.db", "Path to SQLite tick database")
	symbol := flag.String("symbol", "EURUSD", "Instrument symbol")
	venue := flag.String("venue", "OANDA", "Instrument venue")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start replay from (0=all)")
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	period := flag.Int("period", 20, "Band look-back period")
	multiplier := flag.Float64("multiplier", 2.0, "Band standard deviation multiplier")
	cash := flag.Float64("cash", 100000, "Starting cash")
	allocation := flag.Float64("allocation", 1.0, "Equity fraction per entry")
	slippageBps := flag.Float64("slippage", 0, "Simulated slippage in basis points")
	flag.Parse()

	band, err := indicator.NewBollingerBand(*period, *multiplier)
	if err != nil {
		log.Fatalf("[backtest] bad band parameters: %v", err)
	}

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	account := portfolio.New(model.Instrument{Symbol: *symbol, Venue: *venue, PipSize: 0.0001}, *cash)
	strat := strategy.NewMeanReversion(band, account)
	exec := execution.NewPaperExecutor(account, *allocation, *slippageBps, 1024)

	// Setup context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Replay in background
	replayer := replay.New(reader)
	tickCh := make(chan model.Tick, 10000)
	go func() {
		if err := replayer.Run(ctx, *venue, *symbol, *fromTS, *speed, tickCh); err != nil && err != context.Canceled {
			log.Printf("[backtest] replay error: %v", err)
		}
		close(tickCh)
	}()

	// Process ticks sequentially: fills apply before the next evaluation.
	processed := 0
	signals := 0
	for tick := range tickCh {
		account.MarkPrice(tick.Price)
		if sig := strat.OnTick(tick); sig != nil {
			signals++
			exec.Execute(*sig)
		}
		processed++
	}

	// Print summary
	view := account.Snapshot()
	fills := exec.Fills()

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Ticks processed:   %-16d ║\n", processed)
	fmt.Printf("║  Signals:           %-16d ║\n", signals)
	fmt.Printf("║  Fills:             %-16d ║\n", len(fills))
	fmt.Printf("║  Final equity:      %-16.2f ║\n", view.Equity)
	fmt.Printf("║  Realized PnL:      %-16.2f ║\n", view.RealizedPnL)
	fmt.Printf("║  Open units:        %-16d ║\n", view.Units)
	fmt.Println("╚══════════════════════════════════════╝")

	if len(fills) > 0 {
		fmt.Println()
		for i, f := range fills {
			if i >= 20 {
				fmt.Printf("  ... %d more fills\n", len(fills)-20)
				break
			}
			fmt.Printf("  [%s] %s %d @ %.5f (%s)\n",
				f.FilledAt.Format("2006-01-02 15:04:05"), f.Side, f.Units, f.FillPrice, f.Signal.Reason)
		}
	}
}
