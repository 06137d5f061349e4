// Package notify delivers escalation and expiration notices to an external
// webhook. Delivery failures are logged and never propagate.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/seankim-business/accord/internal/logger"
)

// Notification is the payload posted to the webhook.
type Notification struct {
	Kind          string    `json:"kind"` // "escalation", "decision", "expired"
	NegotiationID string    `json:"negotiationId"`
	AgentIDs      []string  `json:"agentIds,omitempty"`
	Message       string    `json:"message"`
	At            time.Time `json:"at"`
}

// Sink receives notifications. Implementations must not block the caller on
// failure and must never return delivery errors upstream.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// Webhook posts notifications as JSON to a fixed URL.
type Webhook struct {
	url    string
	client *http.Client
	log    *logger.Logger
}

// NewWebhook creates a webhook sink. An empty URL yields a no-op sink.
func NewWebhook(url string, timeout time.Duration, log *logger.Logger) Sink {
	if url == "" {
		return Nop{}
	}
	if log == nil {
		log = logger.New()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log.WithField("component", "notify"),
	}
}

// Notify posts the notification. Failures are logged and swallowed.
func (w *Webhook) Notify(ctx context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	body, err := json.Marshal(n)
	if err != nil {
		w.log.Warn("notification marshal failed: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		w.log.Warn("notification request failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.log.Warn("notification delivery failed for %s: %v", n.NegotiationID, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		w.log.Warn("notification rejected for %s: status %d", n.NegotiationID, resp.StatusCode)
	}
}

// Nop discards all notifications.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, Notification) {}
