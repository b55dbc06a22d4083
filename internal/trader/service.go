// Package trader wires the live trading pipeline: WebSocket ingest -> ring
// buffer -> band indicator -> signal evaluation -> order execution, with
// SQLite persistence, Redis publishing, Prometheus metrics, and fill
// notifications around it.
package trader

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"meanrev-systemv1/config"
	"meanrev-systemv1/internal/execution"
	"meanrev-systemv1/internal/indicator"
	"meanrev-systemv1/internal/marketdata/ws"
	"meanrev-systemv1/internal/metrics"
	"meanrev-systemv1/internal/model"
	"meanrev-systemv1/internal/notification"
	"meanrev-systemv1/internal/portfolio"
	"meanrev-systemv1/internal/ringbuf"
	redisstore "meanrev-systemv1/internal/store/redis"
	sqlitestore "meanrev-systemv1/internal/store/sqlite"
	"meanrev-systemv1/internal/strategy"
	"meanrev-systemv1/pkg/brokerclient"
)

const (
	feedBufferSize   = 4096
	ringCapacity     = 8192
	persistQueueSize = 4096
)

// executor is the contract the trader needs from an execution backend:
// the signal-consuming loop plus access to recorded fills for journaling.
type executor interface {
	execution.Executor
	Fills() []execution.Fill
}

// Service is the top-level orchestrator for the trader.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg *config.Config

	instrument model.Instrument
	account    *portfolio.Account
	band       *indicator.BollingerBand
	strat      *strategy.MeanReversion
	engine     *strategy.Engine
	exec       executor
	broker     interface {
		Login(ctx context.Context) error
	}

	ingest *ws.Ingest
	ring   *ringbuf.Ring

	journal     *execution.Journal
	redisWriter *redisstore.Writer
	redisReader *redisstore.Reader
	sqlReader   *sqlitestore.Reader
	sqlWriter   *sqlitestore.Writer

	prom     *metrics.Metrics
	health   *metrics.HealthStatus
	notifier notification.Notifier

	feedCh    chan model.Tick // raw ticks from the WS ingest
	tickCh    chan model.Tick // drained from the ring into the engine
	persistCh chan model.Tick // fan-out to the SQLite writer
	publishCh chan model.Tick // fan-out to the Redis writer

	journaled int // fills already written to the journal
}

// New builds a Service from config. It validates band parameters, opens
// storage, and constructs the executor for the configured mode. Redis and
// SQLite failures are downgraded to warnings so the trader can run without
// infrastructure; the broker (live mode) and the journal are mandatory.
func New(cfg *config.Config, newExecutor func(*portfolio.Account) (executor, error)) (*Service, error) {
	band, err := indicator.NewBollingerBand(cfg.BandPeriod, cfg.BandMultiplier)
	if err != nil {
		return nil, fmt.Errorf("band config: %w", err)
	}

	inst := instrumentFor(cfg.Symbol, cfg.Venue)
	account := portfolio.New(inst, cfg.StartCash)

	svc := &Service{
		cfg:        cfg,
		instrument: inst,
		account:    account,
		band:       band,
		ring:       ringbuf.New(ringCapacity),
		prom:       metrics.NewMetrics(),
		health:     metrics.NewHealthStatus(),
		feedCh:     make(chan model.Tick, feedBufferSize),
		tickCh:     make(chan model.Tick, feedBufferSize),
		persistCh:  make(chan model.Tick, persistQueueSize),
		publishCh:  make(chan model.Tick, persistQueueSize),
	}

	svc.strat = strategy.NewMeanReversion(band, account)
	svc.strat.OnEvaluate = svc.onEvaluate
	svc.engine = strategy.NewEngine(256)
	svc.engine.OnTickProcessed = func(d time.Duration) {
		svc.prom.EvalDur.Observe(d.Seconds())
	}
	svc.engine.Register(svc.strat)

	svc.exec, err = newExecutor(account)
	if err != nil {
		return nil, err
	}

	if cfg.FeedSource == "redis" {
		svc.redisReader, err = redisstore.NewReader(redisstore.ReaderConfig{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPassword,
			ConsumerGroup: cfg.ConsumerGroup,
			ConsumerName:  cfg.ConsumerName,
		})
		if err != nil {
			return nil, fmt.Errorf("redis feed: %w", err)
		}
	} else {
		svc.ingest, err = ws.New(ws.Config{
			URL:            cfg.FeedURL,
			Symbol:         cfg.Symbol,
			ReconnectDelay: cfg.ReconnectDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("feed config: %w", err)
		}
		svc.ingest.OnReconnect = func() {
			svc.prom.WSReconnects.Inc()
			svc.health.SetWSConnected(false)
		}
		svc.ingest.OnDrop = svc.prom.DroppedTicks.Inc
	}

	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	os.MkdirAll(filepath.Dir(cfg.JournalPath), 0o755)

	svc.journal, err = execution.NewJournal(cfg.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	svc.sqlWriter, err = sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Printf("[trader] WARNING: sqlite writer init failed: %v (ticks will not be persisted)", err)
		svc.sqlWriter = nil
	}
	svc.sqlReader, err = sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Printf("[trader] WARNING: sqlite reader init failed: %v (no warm-up backfill)", err)
		svc.sqlReader = nil
	}

	svc.redisWriter, err = redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[trader] WARNING: redis init failed: %v (ticks and decisions will not be published)", err)
		svc.redisWriter = nil
	}

	svc.notifier = buildNotifier(cfg)
	return svc, nil
}

// NewPaper builds a Service with a paper-trading executor.
func NewPaper(cfg *config.Config) (*Service, error) {
	return New(cfg, func(account *portfolio.Account) (executor, error) {
		return execution.NewPaperExecutor(account, cfg.Allocation, cfg.SlippageBps, 256), nil
	})
}

// NewLive builds a Service that routes orders through the broker REST API.
// The broker session is established when Run starts.
func NewLive(cfg *config.Config) (*Service, error) {
	client := brokerclient.New(brokerclient.Config{
		BaseURL:    cfg.BrokerBaseURL,
		APIKey:     cfg.BrokerAPIKey,
		AccountID:  cfg.BrokerAccountID,
		TOTPSecret: cfg.BrokerTOTPSecret,
	})

	svc, err := New(cfg, func(account *portfolio.Account) (executor, error) {
		return execution.NewBrokerExecutor(client, account, cfg.Allocation, 256), nil
	})
	if err != nil {
		return nil, err
	}
	svc.SetBroker(client)
	return svc, nil
}

// FromConfig builds a Service for the configured trade mode.
func FromConfig(cfg *config.Config) (*Service, error) {
	if cfg.Mode == "live" {
		return NewLive(cfg)
	}
	return NewPaper(cfg)
}

// Account exposes the portfolio for status reporting.
func (svc *Service) Account() *portfolio.Account { return svc.account }

// SetBroker records a broker session to authenticate at startup.
// Used by live mode alongside a BrokerExecutor passed to New.
func (svc *Service) SetBroker(b interface {
	Login(ctx context.Context) error
}) {
	svc.broker = b
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	log.Printf("[trader] starting %s trader for %s:%s (period=%d multiplier=%v)",
		cfg.Mode, cfg.Venue, cfg.Symbol, cfg.BandPeriod, cfg.BandMultiplier)

	if svc.broker != nil {
		if err := svc.broker.Login(ctx); err != nil {
			return fmt.Errorf("broker login: %w", err)
		}
		log.Printf("[trader] broker session established")
	}

	// Prime the mark price from the feed's latest-price key when running
	// off a Redis stream.
	if svc.redisReader != nil {
		if price, err := svc.redisReader.LatestPrice(ctx, cfg.Venue, cfg.Symbol); err == nil && price > 0 {
			svc.account.MarkPrice(price)
			svc.prom.LastPrice.Set(price)
		}
	}

	svc.backfill()

	// ---- Metrics and health ----
	mserver := metrics.NewServer(cfg.MetricsAddr, svc.health)
	mserver.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		mserver.Stop(shutdownCtx)
		cancel()
	}()
	svc.startLiveness(ctx)

	// ---- Storage loops ----
	if svc.sqlWriter != nil {
		go svc.sqlWriter.Run(ctx, svc.persistCh)
	}
	if svc.redisWriter != nil {
		go svc.redisWriter.Run(ctx, svc.publishCh)
	}

	// ---- Trading pipeline ----
	go svc.engine.Run(ctx, svc.tickCh)
	execCh := make(chan strategy.Signal, 256)
	go svc.exec.Run(ctx, execCh)
	go svc.signalLoop(ctx, execCh)
	go svc.resultLoop(ctx)
	go svc.pumpLoop(ctx)
	go svc.drainLoop(ctx)

	// ---- Feed (blocks until ctx is cancelled) ----
	var err error
	if svc.redisReader != nil {
		stream := redisstore.TickStreamKey(cfg.Venue, cfg.Symbol)
		if err = svc.redisReader.EnsureConsumerGroup(ctx, stream); err == nil {
			err = svc.redisReader.ConsumeTicks(ctx, stream, svc.feedCh)
		}
	} else {
		err = svc.ingest.Start(ctx, svc.feedCh)
	}

	svc.shutdown()
	return err
}

// backfill rebuilds the indicator window from the most recent persisted
// ticks so a restart does not lose band warm-up.
func (svc *Service) backfill() {
	svc.prom.WarmupRemaining.Set(float64(svc.band.Period()))
	if svc.sqlReader == nil {
		return
	}

	ticks, err := svc.sqlReader.ReadLastTicks(svc.cfg.Venue, svc.cfg.Symbol, svc.band.Period())
	if err != nil {
		log.Printf("[trader] backfill read error: %v", err)
		return
	}
	for _, t := range ticks {
		svc.band.Observe(t.Price)
	}

	remaining := svc.band.Period() - len(ticks)
	if remaining < 0 {
		remaining = 0
	}
	svc.prom.WarmupRemaining.Set(float64(remaining))
	log.Printf("[trader] backfilled %d ticks from sqlite (warm-up remaining: %d)", len(ticks), remaining)
}

func (svc *Service) startLiveness(ctx context.Context) {
	var rdb *goredis.Client
	if svc.redisWriter != nil {
		rdb = svc.redisWriter.Client()
	}
	var db *sql.DB
	if svc.sqlWriter != nil {
		db = svc.sqlWriter.DB()
	}
	if rdb != nil || db != nil {
		svc.health.StartLivenessChecker(ctx, rdb, db, 15*time.Second)
	}
}

// pumpLoop moves ticks from the feed channel into the ring buffer.
func (svc *Service) pumpLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-svc.feedCh:
			svc.health.SetWSConnected(true)
			if !svc.ring.Push(tick) {
				svc.prom.RingOverflow.Inc()
			}
		}
	}
}

// drainLoop pops ticks from the ring buffer and fans them out: strategy
// engine, account mark price, SQLite persistence, Redis publishing.
func (svc *Service) drainLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				tick, ok := svc.ring.Pop()
				if !ok {
					break
				}
				svc.handleTick(tick)
			}
		}
	}
}

func (svc *Service) handleTick(tick model.Tick) {
	svc.prom.TicksTotal.Inc()
	svc.prom.LastPrice.Set(tick.Price)
	svc.health.SetLastTickTime(tick.TickTS)
	svc.account.MarkPrice(tick.Price)

	select {
	case svc.tickCh <- tick:
	default:
		svc.prom.DroppedTicks.Inc()
	}
	if svc.sqlWriter != nil {
		select {
		case svc.persistCh <- tick:
		default:
		}
	}
	// Don't republish ticks that already came from the Redis stream.
	if svc.redisWriter != nil && svc.redisReader == nil {
		select {
		case svc.publishCh <- tick:
		default:
		}
	}
}

// signalLoop forwards engine signals to the executor, publishing each
// decision to Redis on the way through.
func (svc *Service) signalLoop(ctx context.Context, execCh chan<- strategy.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-svc.engine.Signals():
			if !ok {
				return
			}
			log.Printf("[trader] signal: %s %s:%s at %.5f (%s)",
				sig.Decision, sig.Venue, sig.Symbol, sig.Price, sig.Reason)
			if svc.redisWriter != nil {
				svc.redisWriter.WriteDecision(ctx, sig)
			}
			select {
			case execCh <- sig:
			default:
				log.Printf("[trader] executor queue full, dropping signal: %s", sig.Decision)
			}
		}
	}
}

// resultLoop consumes order results, counts them, and journals and
// notifies fills.
func (svc *Service) resultLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-svc.exec.Results():
			if !ok {
				return
			}
			svc.prom.OrdersTotal.WithLabelValues(res.Status).Inc()
			if res.Status != "FILLED" {
				log.Printf("[trader] order %s: %s", res.Status, res.Message)
				continue
			}
			svc.onFilled(ctx)
		}
	}
}

// onFilled journals fills recorded since the last call and refreshes the
// account gauges.
func (svc *Service) onFilled(ctx context.Context) {
	fills := svc.exec.Fills()
	for _, fill := range fills[svc.journaled:] {
		svc.prom.FillsTotal.Inc()
		if err := svc.journal.RecordFill(fill); err != nil {
			log.Printf("[trader] journal write error: %v", err)
		}
		if err := svc.notifier.Send(ctx, notification.FillAlert(fill)); err != nil {
			log.Printf("[trader] notification error: %v", err)
		}
	}
	svc.journaled = len(fills)

	view := svc.account.Snapshot()
	svc.prom.Equity.Set(view.Equity)
	svc.prom.PositionUnits.Set(float64(view.Units))
	if view.Units > 0 {
		svc.prom.Invested.Set(1)
	} else {
		svc.prom.Invested.Set(0)
	}
}

// onEvaluate runs inside the engine's tick goroutine after every band
// evaluation.
func (svc *Service) onEvaluate(price float64, band indicator.Band, decision strategy.Decision) {
	svc.prom.WarmupRemaining.Set(0)
	svc.prom.BandUpper.Set(band.Upper)
	svc.prom.BandMiddle.Set(band.Middle)
	svc.prom.BandLower.Set(band.Lower)
	svc.prom.DecisionsTotal.WithLabelValues(string(decision)).Inc()
}

func (svc *Service) shutdown() {
	log.Printf("[trader] shutting down")
	if svc.redisWriter != nil {
		svc.redisWriter.Close()
	}
	if svc.redisReader != nil {
		svc.redisReader.Close()
	}
	if svc.sqlReader != nil {
		svc.sqlReader.Close()
	}
	svc.journal.Close()

	view := svc.account.Snapshot()
	log.Printf("[trader] final equity=%.2f units=%d realized_pnl=%.2f",
		view.Equity, view.Units, view.RealizedPnL)
}

func buildNotifier(cfg *config.Config) notification.Notifier {
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if len(backends) == 1 {
		return backends[0]
	}
	return notification.NewMultiNotifier(backends...)
}

// instrumentFor derives an Instrument from a six-letter pair symbol.
func instrumentFor(symbol, venue string) model.Instrument {
	inst := model.Instrument{Symbol: symbol, Venue: venue, PipSize: 0.0001}
	if len(symbol) == 6 {
		inst.BaseCurrency = symbol[:3]
		inst.QuoteCurrency = symbol[3:]
	}
	// JPY pairs quote to two decimals
	if inst.QuoteCurrency == "JPY" {
		inst.PipSize = 0.01
	}
	return inst
}
