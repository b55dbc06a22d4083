// cmd/feedsim serves a simulated WebSocket quote feed for paper runs.
// Prices follow a seeded random walk so sessions can be reproduced.
//
// Usage:
//
//	go run ./cmd/feedsim --addr=:8089 --symbol=EURUSD --interval=250ms
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meanrev-systemv1/internal/marketdata/sim"
	"meanrev-systemv1/internal/model"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	addr := flag.String("addr", ":8089", "Listen address")
	symbol := flag.String("symbol", "EURUSD", "Instrument symbol")
	venue := flag.String("venue", "OANDA", "Instrument venue")
	start := flag.Float64("start", 1.0850, "Starting price")
	interval := flag.Duration("interval", 250*time.Millisecond, "Tick interval")
	seed := flag.Int64("seed", 0, "Random walk seed (0 = time-based)")
	flag.Parse()

	srv := sim.NewServer(sim.Config{
		Addr:        *addr,
		Instruments: []model.Instrument{{Symbol: *symbol, Venue: *venue, PipSize: 0.0001}},
		StartPrice:  *start,
		Interval:    *interval,
		Seed:        *seed,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	log.Printf("[feedsim] serving %s:%s on ws://%s/ws every %v", *venue, *symbol, *addr, *interval)
	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("[feedsim] fatal: %v", err)
	}
}
