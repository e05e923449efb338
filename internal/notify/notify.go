package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"linkauthority-go/internal/models"

	"go.uber.org/zap"
)

// Event types posted to the outbound webhook.
const (
	EventExchangeRequested = "exchange.requested"
	EventExchangeCompleted = "exchange.completed"
	EventExchangeExpired   = "exchange.expired"
	EventWebsiteVerified   = "website.verified"
)

// Event is the webhook payload.
type Event struct {
	Type          string    `json:"type"`
	UserId        string    `json:"user_id,omitempty"`
	TransactionId string    `json:"transaction_id,omitempty"`
	WebsiteId     string    `json:"website_id,omitempty"`
	Points        string    `json:"points,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Notifier delivers marketplace events to an external consumer.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Webhook posts events to a configured URL. Delivery is fire-and-forget:
// a failed post is logged and dropped, never retried, and never blocks the
// operation that produced the event.
type Webhook struct {
	url    string
	client *http.Client
}

// New returns a webhook notifier, or the no-op notifier when no URL is
// configured.
func New(cfg models.NotifyConfig) Notifier {
	if cfg.WebhookURL == "" {
		return Noop{}
	}
	return &Webhook{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (w *Webhook) Notify(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		zap.L().Warn("Failed to encode webhook event", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		zap.L().Warn("Failed to build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		zap.L().Warn("Webhook delivery failed",
			zap.String("type", event.Type), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		zap.L().Warn("Webhook consumer rejected event",
			zap.String("type", event.Type), zap.Int("status", resp.StatusCode))
		return
	}

	zap.L().Debug("Webhook delivered",
		zap.String("type", event.Type),
		zap.String("transaction_id", event.TransactionId))
}

// Noop drops every event.
type Noop struct{}

func (Noop) Notify(context.Context, Event) {}
