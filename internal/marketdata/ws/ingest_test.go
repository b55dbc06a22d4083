package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meanrev-systemv1/internal/model"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// tickServer upgrades each connection and sends the given messages.
func tickServer(t *testing.T, messages [][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestIngestDeliversTicksInOrder(t *testing.T) {
	var messages [][]byte
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		messages = append(messages, mustJSON(t, model.Tick{
			Symbol: "EURUSD",
			Venue:  "OANDA",
			Price:  1.07 + float64(i)*0.0001,
			TickTS: base.Add(time.Duration(i) * time.Second),
		}))
	}
	srv := tickServer(t, messages)

	ing, err := New(Config{URL: wsURL(srv), Symbol: "EURUSD"})
	if err != nil {
		t.Fatalf("new ingest: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tickCh := make(chan model.Tick, 16)
	go ing.Start(ctx, tickCh)

	for i := 0; i < 5; i++ {
		select {
		case tick := <-tickCh:
			want := 1.07 + float64(i)*0.0001
			if tick.Price != want {
				t.Errorf("tick %d price = %v, want %v (order broken?)", i, tick.Price, want)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for tick %d", i)
		}
	}
}

func TestIngestFiltersOtherSymbols(t *testing.T) {
	messages := [][]byte{
		mustJSON(t, model.Tick{Symbol: "GBPUSD", Venue: "OANDA", Price: 1.26}),
		mustJSON(t, model.Tick{Symbol: "EURUSD", Venue: "OANDA", Price: 1.07}),
		[]byte("not json"),
		mustJSON(t, model.Tick{Venue: "OANDA", Price: 1.08}), // empty symbol
		mustJSON(t, model.Tick{Symbol: "EURUSD", Venue: "OANDA", Price: 1.0701}),
	}
	srv := tickServer(t, messages)

	ing, err := New(Config{URL: wsURL(srv), Symbol: "EURUSD"})
	if err != nil {
		t.Fatalf("new ingest: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tickCh := make(chan model.Tick, 16)
	go ing.Start(ctx, tickCh)

	var got []model.Tick
	for len(got) < 2 {
		select {
		case tick := <-tickCh:
			got = append(got, tick)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out, got %d ticks", len(got))
		}
	}
	for _, tick := range got {
		if tick.Symbol != "EURUSD" {
			t.Errorf("filter let through %s", tick.Symbol)
		}
	}
}

func TestIngestRejectsBadURL(t *testing.T) {
	if _, err := New(Config{URL: "://not-a-url"}); err == nil {
		t.Error("expected error for malformed URL")
	}
}
