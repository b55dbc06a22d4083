package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Symbol != "EURUSD" {
		t.Errorf("default symbol = %q, want EURUSD", cfg.Symbol)
	}
	if cfg.BandPeriod != 20 {
		t.Errorf("default period = %d, want 20", cfg.BandPeriod)
	}
	if cfg.BandMultiplier != 2.0 {
		t.Errorf("default multiplier = %v, want 2.0", cfg.BandMultiplier)
	}
	if cfg.Mode != "paper" {
		t.Errorf("default mode = %q, want paper", cfg.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SYMBOL", "GBPUSD")
	t.Setenv("BAND_PERIOD", "50")
	t.Setenv("BAND_MULTIPLIER", "1.5")
	t.Setenv("ALLOCATION", "0.25")

	cfg := Load()
	if cfg.Symbol != "GBPUSD" {
		t.Errorf("symbol = %q, want GBPUSD", cfg.Symbol)
	}
	if cfg.BandPeriod != 50 {
		t.Errorf("period = %d, want 50", cfg.BandPeriod)
	}
	if cfg.BandMultiplier != 1.5 {
		t.Errorf("multiplier = %v, want 1.5", cfg.BandMultiplier)
	}
	if cfg.Allocation != 0.25 {
		t.Errorf("allocation = %v, want 0.25", cfg.Allocation)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("BAND_PERIOD", "twenty")
	t.Setenv("BAND_MULTIPLIER", "wide")

	cfg := Load()
	if cfg.BandPeriod != 20 {
		t.Errorf("unparseable period should fall back to 20, got %d", cfg.BandPeriod)
	}
	if cfg.BandMultiplier != 2.0 {
		t.Errorf("unparseable multiplier should fall back to 2.0, got %v", cfg.BandMultiplier)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"zero period", func(c *Config) { c.BandPeriod = 0 }, "BAND_PERIOD"},
		{"negative period", func(c *Config) { c.BandPeriod = -5 }, "BAND_PERIOD"},
		{"zero multiplier", func(c *Config) { c.BandMultiplier = 0 }, "BAND_MULTIPLIER"},
		{"negative multiplier", func(c *Config) { c.BandMultiplier = -2 }, "BAND_MULTIPLIER"},
		{"empty symbol", func(c *Config) { c.Symbol = "" }, "SYMBOL"},
		{"bad mode", func(c *Config) { c.Mode = "dry-run" }, "TRADE_MODE"},
		{"zero cash", func(c *Config) { c.StartCash = 0 }, "START_CASH"},
		{"allocation over 1", func(c *Config) { c.Allocation = 1.5 }, "ALLOCATION"},
		{"zero allocation", func(c *Config) { c.Allocation = 0 }, "ALLOCATION"},
		{"negative slippage", func(c *Config) { c.SlippageBps = -1 }, "SLIPPAGE_BPS"},
		{"bad feed source", func(c *Config) { c.FeedSource = "kafka" }, "FEED_SOURCE"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Load()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q should mention %s", err, tc.wantSub)
			}
		})
	}
}

func TestValidateLiveRequiresBrokerCreds(t *testing.T) {
	cfg := Load()
	cfg.Mode = "live"
	if err := cfg.Validate(); err == nil {
		t.Fatal("live mode without broker credentials should fail validation")
	}

	cfg.BrokerBaseURL = "https://broker.example.com"
	cfg.BrokerAPIKey = "key"
	cfg.BrokerAccountID = "acct"
	cfg.BrokerTOTPSecret = "JBSWY3DPEHPK3PXP"
	if err := cfg.Validate(); err != nil {
		t.Errorf("live mode with full credentials should validate: %v", err)
	}
}
