// cmd/trader runs the mean-reversion trader: it ingests a WebSocket tick
// feed, maintains the Bollinger band, evaluates entry/exit signals, and
// executes them in paper or live mode.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"meanrev-systemv1/config"
	"meanrev-systemv1/internal/logger"
	"meanrev-systemv1/internal/trader"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("trader", slog.LevelInfo)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[trader] bad config: %v", err)
	}

	svc, err := trader.FromConfig(cfg)
	if err != nil {
		log.Fatalf("[trader] init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := svc.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("[trader] fatal: %v", err)
	}
}
