// Package notify is the outbound notification boundary. Delivery is
// fire-and-forget: failures are logged, never propagated, and message
// rendering is the receiving service's concern.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/yanun0323/logs"
)

// Kind is a lifecycle event category.
type Kind string

const (
	KindTradePlaced   Kind = "tradePlaced"
	KindTradeClosed   Kind = "tradeClosed"
	KindBotOnline     Kind = "botOnline"
	KindBotOffline    Kind = "botOffline"
	KindCrash         Kind = "crash"
	KindDailySummary  Kind = "dailySummary"
	KindWeeklySummary Kind = "weeklySummary"
)

// Notifier delivers lifecycle events to an external service.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, payload map[string]any)
}

type message struct {
	Kind    Kind           `json:"kind"`
	SentAt  time.Time      `json:"sentAt"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Webhook posts events as JSON to a configured URL. An empty URL disables
// delivery.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook notifier. client may be nil for the
// default 10s-timeout client.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{url: url, client: client}
}

// Notify posts the event. Failures are logged and swallowed.
func (w *Webhook) Notify(ctx context.Context, kind Kind, payload map[string]any) {
	if w.url == "" {
		return
	}

	data, err := json.Marshal(message{Kind: kind, SentAt: time.Now().UTC(), Payload: payload})
	if err != nil {
		logs.Errorf("marshal %s notification, err: %+v", kind, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(data))
	if err != nil {
		logs.Errorf("build %s notification, err: %+v", kind, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		logs.Errorf("deliver %s notification, err: %+v", kind, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		logs.Errorf("deliver %s notification, status: %d", kind, resp.StatusCode)
		return
	}
	logs.Infof("notification sent: %s", kind)
}

// Nop drops every event. Used when no webhook is configured and in tests.
type Nop struct{}

func (Nop) Notify(context.Context, Kind, map[string]any) {}
