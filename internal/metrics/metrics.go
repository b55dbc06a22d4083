package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trader.
type Metrics struct {
	TicksTotal    prometheus.Counter
	DroppedTicks  prometheus.Counter
	WSReconnects  prometheus.Counter
	RingOverflow  prometheus.Counter
	DecisionsTotal *prometheus.CounterVec // labels: decision
	OrdersTotal    *prometheus.CounterVec // labels: status
	FillsTotal     prometheus.Counter

	EvalDur prometheus.Histogram

	BandUpper  prometheus.Gauge
	BandMiddle prometheus.Gauge
	BandLower  prometheus.Gauge
	LastPrice  prometheus.Gauge
	Equity     prometheus.Gauge
	PositionUnits prometheus.Gauge
	Invested      prometheus.Gauge // 0 = flat, 1 = invested
	WarmupRemaining prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_ticks_total",
			Help: "Total ticks received from the feed",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_dropped_ticks_total",
			Help: "Ticks dropped (channel full)",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_ws_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		}),
		RingOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_ring_overflow_total",
			Help: "Ticks dropped at the ring buffer",
		}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_decisions_total",
			Help: "Strategy decisions (by outcome)",
		}, []string{"decision"}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_total",
			Help: "Order results (by status)",
		}, []string{"status"}),
		FillsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_fills_total",
			Help: "Executed fills",
		}),
		EvalDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trader_eval_duration_seconds",
			Help:    "Indicator update + evaluation latency per tick",
			Buckets: prometheus.ExponentialBuckets(1e-7, 10, 8),
		}),
		BandUpper: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_band_upper",
			Help: "Current upper Bollinger band",
		}),
		BandMiddle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_band_middle",
			Help: "Current middle Bollinger band (rolling mean)",
		}),
		BandLower: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_band_lower",
			Help: "Current lower Bollinger band",
		}),
		LastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_last_price",
			Help: "Latest observed price",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_equity",
			Help: "Account equity (cash + marked position)",
		}),
		PositionUnits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_position_units",
			Help: "Open position size in units",
		}),
		Invested: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_invested",
			Help: "Whether a position is open (0/1)",
		}),
		WarmupRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_warmup_remaining",
			Help: "Observations still needed before the band is ready",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal, m.DroppedTicks, m.WSReconnects, m.RingOverflow,
		m.DecisionsTotal, m.OrdersTotal, m.FillsTotal,
		m.EvalDur,
		m.BandUpper, m.BandMiddle, m.BandLower, m.LastPrice,
		m.Equity, m.PositionUnits, m.Invested, m.WarmupRemaining,
	)
	return m
}

// HealthStatus tracks liveness of the trader's dependencies.
type HealthStatus struct {
	mu sync.RWMutex

	StartedAt    time.Time
	WSConnected  bool
	LastTickTime time.Time

	RedisConnected bool
	RedisLatencyMs float64
	SQLiteOK       bool
	SQLiteLatencyMs float64

	LastCheckAt time.Time
}

// NewHealthStatus creates a HealthStatus with the start time set.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now(), RedisConnected: true, SQLiteOK: true}
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

// CheckRedis probes Redis and records latency.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	lat := float64(time.Since(start).Microseconds()) / 1000.0

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = lat
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite probes SQLite and records latency.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	lat := float64(time.Since(start).Microseconds()) / 1000.0

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = lat
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.WSConnected || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		WSConnected     bool    `json:"ws_connected"`
		LastTickTime    string  `json:"last_tick_time"`
		TickAge         string  `json:"tick_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		WSConnected:     h.WSConnected,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
