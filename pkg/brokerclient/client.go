// Package brokerclient is a minimal REST client for the broker's forex
// trading API. It covers session login (API key + account + TOTP), market
// order placement, and position close — the only endpoints the trader needs.
//
// Usage:
//
//	bc := brokerclient.New(brokerclient.Config{
//		BaseURL: "https://api.broker.example", APIKey: "key",
//		AccountID: "001-001", TOTPSecret: "JBSWY3DPEHPK3PXP",
//	})
//	if err := bc.Login(ctx); err != nil { log.Fatal(err) }
//	conf, err := bc.PlaceMarketOrder(ctx, "EURUSD", "BUY", 90000)
package brokerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
)

// ErrSessionExpired is returned when the broker rejects the session token.
// Callers may re-Login and retry.
var ErrSessionExpired = errors.New("brokerclient: session expired")

// Config configures the broker client.
type Config struct {
	BaseURL    string // e.g. "https://api.broker.example"
	APIKey     string
	AccountID  string
	TOTPSecret string // base32 secret for the account's 2FA

	Timeout time.Duration // default: 7s
	Debug   bool
}

// Client is a session-holding broker REST client. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu           sync.RWMutex
	sessionToken string

	// SessionExpiryHook, if set, is called when the broker returns 401.
	SessionExpiryHook func()
}

// New creates a broker client. Login must be called before trading methods.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Login generates a fresh TOTP code and opens a broker session.
func (c *Client) Login(ctx context.Context) error {
	code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("brokerclient: generate totp: %w", err)
	}

	var resp struct {
		SessionToken string `json:"session_token"`
	}
	err = c.post(ctx, "/v1/session", map[string]any{
		"api_key":    c.cfg.APIKey,
		"account_id": c.cfg.AccountID,
		"totp":       code,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.SessionToken == "" {
		return errors.New("brokerclient: login response missing session token")
	}

	c.mu.Lock()
	c.sessionToken = resp.SessionToken
	c.mu.Unlock()

	log.Printf("[broker] session opened for account %s", c.cfg.AccountID)
	return nil
}

// OrderConfirmation is the broker's response to an order.
type OrderConfirmation struct {
	OrderID   string  `json:"order_id"`
	Units     int64   `json:"units"`
	FillPrice float64 `json:"fill_price"`
}

// PlaceMarketOrder submits a market order for the given units.
// side is "BUY" or "SELL".
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol, side string, units int64) (OrderConfirmation, error) {
	var conf OrderConfirmation
	err := c.post(ctx, "/v1/orders", map[string]any{
		"account_id": c.cfg.AccountID,
		"symbol":     symbol,
		"side":       side,
		"type":       "MARKET",
		"units":      units,
	}, &conf)
	return conf, err
}

// ClosePosition closes the account's entire position in symbol.
func (c *Client) ClosePosition(ctx context.Context, symbol string) (OrderConfirmation, error) {
	var conf OrderConfirmation
	err := c.post(ctx, fmt.Sprintf("/v1/positions/%s/close", symbol), map[string]any{
		"account_id": c.cfg.AccountID,
	}, &conf)
	return conf, err
}

func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("brokerclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("brokerclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	c.mu.RLock()
	token := c.sessionToken
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if c.cfg.Debug {
		log.Printf("[broker] POST %s %s", path, payload)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("brokerclient: %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("brokerclient: read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if c.SessionExpiryHook != nil {
			c.SessionExpiryHook()
		}
		return ErrSessionExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("brokerclient: %s: status %d: %s", path, resp.StatusCode, truncate(data, 200))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("brokerclient: decode response: %w", err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
