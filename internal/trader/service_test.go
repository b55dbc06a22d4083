package trader

import (
	"testing"

	"meanrev-systemv1/config"
	"meanrev-systemv1/internal/notification"
)

func TestInstrumentFor(t *testing.T) {
	inst := instrumentFor("EURUSD", "OANDA")
	if inst.BaseCurrency != "EUR" || inst.QuoteCurrency != "USD" {
		t.Errorf("EURUSD split = %s/%s, want EUR/USD", inst.BaseCurrency, inst.QuoteCurrency)
	}
	if inst.PipSize != 0.0001 {
		t.Errorf("EURUSD pip = %v, want 0.0001", inst.PipSize)
	}

	jpy := instrumentFor("USDJPY", "OANDA")
	if jpy.PipSize != 0.01 {
		t.Errorf("USDJPY pip = %v, want 0.01", jpy.PipSize)
	}

	odd := instrumentFor("XAU", "OANDA")
	if odd.BaseCurrency != "" || odd.QuoteCurrency != "" {
		t.Errorf("non-pair symbol should leave currencies empty, got %s/%s",
			odd.BaseCurrency, odd.QuoteCurrency)
	}
}

func TestBuildNotifier(t *testing.T) {
	cfg := &config.Config{}
	if _, ok := buildNotifier(cfg).(*notification.LogNotifier); !ok {
		t.Error("bare config should produce a log-only notifier")
	}

	cfg = &config.Config{
		TelegramBotToken: "token",
		TelegramChatID:   "chat",
		WebhookURL:       "https://hooks.example.com/fills",
	}
	if _, ok := buildNotifier(cfg).(*notification.MultiNotifier); !ok {
		t.Error("config with telegram and webhook should produce a multi notifier")
	}
}

func TestNewRejectsBadBandParameters(t *testing.T) {
	cfg := config.Load()
	cfg.BandPeriod = 0
	if _, err := NewPaper(cfg); err == nil {
		t.Error("period 0 should fail service construction")
	}

	cfg = config.Load()
	cfg.BandMultiplier = -1
	if _, err := NewPaper(cfg); err == nil {
		t.Error("negative multiplier should fail service construction")
	}
}
