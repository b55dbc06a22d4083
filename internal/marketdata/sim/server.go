// Package sim provides a simulated quote feed: a random-walk price generator
// and a WebSocket server broadcasting tick JSON in the model.Tick wire shape.
// Used by cmd/feedsim for paper runs without broker credentials.
package sim

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"meanrev-systemv1/internal/model"

	"github.com/gorilla/websocket"
)

// Config configures the simulated feed server.
type Config struct {
	Addr        string             // listen address, e.g. ":9001"
	Instruments []model.Instrument // instruments to quote
	StartPrice  float64            // initial price for every instrument
	Interval    time.Duration      // broadcast interval
	Seed        int64              // 0 = time-based seed
}

// Server broadcasts simulated ticks to all connected WebSocket clients.
type Server struct {
	cfg Config
	hub *hub
	rng *rand.Rand
}

// NewServer creates a simulated feed server.
func NewServer(cfg Config) *Server {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Server{
		cfg: cfg,
		hub: newHub(),
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Run serves the WebSocket endpoint and generates ticks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.wsHandler)

	srv := &http.Server{Addr: s.cfg.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go s.generate(ctx)

	log.Printf("[feedsim] serving ws://%s/ws (%d instruments, interval %s)",
		s.cfg.Addr, len(s.cfg.Instruments), s.cfg.Interval)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// generate walks each instrument's price and broadcasts one tick per
// instrument per interval.
func (s *Server) generate(ctx context.Context) {
	prices := make([]float64, len(s.cfg.Instruments))
	for i := range prices {
		prices[i] = s.cfg.StartPrice
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i, inst := range s.cfg.Instruments {
				prices[i] = s.walk(prices[i])
				tick := model.Tick{
					Symbol: inst.Symbol,
					Venue:  inst.Venue,
					Price:  prices[i],
					TickTS: time.Now().UTC(),
				}
				b, err := json.Marshal(tick)
				if err != nil {
					continue
				}
				s.hub.broadcast(b)
			}
		}
	}
}

// walk applies a tiny random step (±0.05%) to simulate quote movement.
func (s *Server) walk(price float64) float64 {
	pct := (s.rng.Float64()*0.1 - 0.05) / 100.0
	next := price * (1 + pct)
	if next < 0.00001 {
		next = 0.00001
	}
	return next
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[feedsim] upgrade error: %v", err)
		return
	}
	log.Printf("[feedsim] client connected: %s", r.RemoteAddr)

	ch := s.hub.register(conn)
	defer func() {
		s.hub.unregister(conn)
		conn.Close()
		log.Printf("[feedsim] client disconnected: %s", r.RemoteAddr)
	}()

	// Write pump: sends tick JSON to this client.
	for msg := range ch {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// hub tracks connected clients and fans out broadcasts.
type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client — drop tick
		}
	}
}
