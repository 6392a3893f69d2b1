// Package notification delivers decision alerts to external channels
// (Telegram, webhooks). Delivery is best-effort: a failed channel is
// logged and never blocks the worker.
package notification

import (
	"context"
	"fmt"
	"log"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is one notification to deliver.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is implemented by all delivery backends.
type Notifier interface {
	// Send delivers an alert. Returns an error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// Name returns a short channel label for metrics.
func Name(n Notifier) string {
	switch n.(type) {
	case *TelegramNotifier:
		return "telegram"
	case *WebhookNotifier:
		return "webhook"
	default:
		return "log"
	}
}

// LogNotifier writes alerts to the process log. Used in development
// and as the fallback when no channel is configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// DecisionAlert formats an evaluation outcome for delivery. TAKE
// decisions alert at INFO; everything else is not usually sent, but
// callers may deliver REJECT storms as WARNING for operator attention.
func DecisionAlert(sig *model.Signal, res *model.DecisionResult) Alert {
	level := AlertInfo
	if res.Decision == model.DecisionReject {
		level = AlertWarning
	}

	title := fmt.Sprintf("%s %s %s (%d%%)", res.Decision, sig.Side, sig.Instrument, res.ScorePct)

	msg := fmt.Sprintf("entry %s  sl %s  tp %s  r %.2f",
		sig.Entry, sig.Stop, sig.Take, sig.R)
	for _, reason := range res.Reasons {
		msg += fmt.Sprintf("\n[%s] %s: %s", reason.Severity, reason.Code, reason.Msg)
	}

	return Alert{Level: level, Title: title, Message: msg}
}
