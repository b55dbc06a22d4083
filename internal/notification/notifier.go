// Package notification provides alert delivery to external channels
// (Telegram, webhooks) for trading events.
package notification

import (
	"context"
	"fmt"
	"log"

	"meanrev-systemv1/internal/execution"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// FillAlert formats an executed fill as an alert.
func FillAlert(fill execution.Fill) Alert {
	return Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("%s %s", fill.Signal.Decision, fill.Signal.Symbol),
		Message: fmt.Sprintf("%s %d units of %s at %.5f (%s)",
			fill.Side, fill.Units, fill.Signal.Symbol, fill.FillPrice, fill.Signal.Reason),
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// MultiNotifier fans an alert out to several backends. Delivery failures are
// logged, not propagated — one dead webhook must not block the others.
type MultiNotifier struct {
	backends []Notifier
}

// NewMultiNotifier creates a fan-out notifier over the given backends.
func NewMultiNotifier(backends ...Notifier) *MultiNotifier {
	return &MultiNotifier{backends: backends}
}

func (m *MultiNotifier) Send(ctx context.Context, alert Alert) error {
	for _, n := range m.backends {
		if err := n.Send(ctx, alert); err != nil {
			log.Printf("[notify] backend error: %v", err)
		}
	}
	return nil
}
