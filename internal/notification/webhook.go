package notification

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// webhookPayload is the JSON body posted for every alert.
type webhookPayload struct {
	Kind    AlertKind  `json:"kind"`
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	UserID  int64      `json:"user_id,omitempty"`
	Symbols []string   `json:"symbols,omitempty"`
	SentAt  time.Time  `json:"sent_at"`
}

// WebhookNotifier posts alerts to an HTTP endpoint, e.g. a chat-ops relay.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: sendTimeout},
		now:    time.Now,
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	err := postJSON(ctx, w.client, "webhook", w.url, webhookPayload{
		Kind:    alert.Kind,
		Level:   alert.Level,
		Title:   alert.Title,
		Message: alert.Message,
		UserID:  alert.UserID,
		Symbols: alert.Symbols,
		SentAt:  w.now().UTC(),
	}, nil)
	if err == nil {
		slog.Debug("webhook alert delivered", "kind", alert.Kind, "user_id", alert.UserID)
	}
	return err
}
