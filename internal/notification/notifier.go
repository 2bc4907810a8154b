// Package notification delivers scan and trade alerts to external channels
// (Telegram, generic webhooks) or the log.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// AlertKind says what produced an alert.
type AlertKind string

const (
	KindScan   AlertKind = "scan"
	KindTrade  AlertKind = "trade"
	KindSystem AlertKind = "system"
)

// Alert is one notification. UserID and Symbols are zero for system alerts.
type Alert struct {
	Kind    AlertKind  `json:"kind"`
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	UserID  int64      `json:"user_id,omitempty"`
	Symbols []string   `json:"symbols,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, alert Alert) error {
	slog.Info("alert", "kind", alert.Kind, "level", alert.Level, "user_id", alert.UserID,
		"title", alert.Title, "message", alert.Message)
	return nil
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Retrying retries a failing Notifier with exponential backoff starting at
// Base (1s when zero). A permanent rejection, e.g. a revoked bot token, is
// returned without retrying.
type Retrying struct {
	Notifier   Notifier
	MaxRetries int
	Base       time.Duration
}

func (r Retrying) Send(ctx context.Context, alert Alert) error {
	base := r.Base
	if base <= 0 {
		base = time.Second
	}
	var lastErr error
	for i := 0; i <= r.MaxRetries; i++ {
		if lastErr = r.Notifier.Send(ctx, alert); lastErr == nil {
			return nil
		}
		if permanent(lastErr) {
			return lastErr
		}
		if i == r.MaxRetries {
			break
		}
		backoff := base << uint(i)
		slog.Warn("alert send failed", "attempt", i+1, "of", r.MaxRetries+1, "err", lastErr, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", r.MaxRetries+1, lastErr)
}

// Config selects the backends. Empty fields disable a backend; with none
// configured alerts go to the log.
type Config struct {
	WebhookURL    string
	TelegramToken string
	TelegramChat  string
	MaxRetries    int
}

// New builds the notifier for cfg.
func New(cfg Config) Notifier {
	var out Multi
	if cfg.WebhookURL != "" {
		out = append(out, NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChat != "" {
		out = append(out, NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChat))
	}
	if len(out) == 0 {
		return LogNotifier{}
	}
	for i, n := range out {
		out[i] = Retrying{Notifier: n, MaxRetries: cfg.MaxRetries}
	}
	return out
}
