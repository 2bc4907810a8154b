package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier sends alerts through the Telegram Bot API sendMessage
// method, formatted as MarkdownV2.
type TelegramNotifier struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: sendTimeout},
	}
}

type telegramMessage struct {
	ChatID              string `json:"chat_id"`
	Text                string `json:"text"`
	ParseMode           string `json:"parse_mode"`
	DisableNotification bool   `json:"disable_notification,omitempty"`
}

// telegramReply is the Bot API envelope; ok is false on API-level failures
// that still come back with a 200.
type telegramReply struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	msg := telegramMessage{
		ChatID:    t.chatID,
		Text:      telegramText(alert),
		ParseMode: "MarkdownV2",
		// Informational scan digests arrive silently.
		DisableNotification: alert.Kind == KindScan && alert.Level == AlertInfo,
	}
	var reply telegramReply
	url := t.baseURL + "/bot" + t.token + "/sendMessage"
	if err := postJSON(ctx, t.client, "telegram", url, msg, &reply); err != nil {
		return err
	}
	if !reply.OK {
		return fmt.Errorf("telegram: %s", reply.Description)
	}
	slog.Debug("telegram alert delivered", "kind", alert.Kind, "user_id", alert.UserID)
	return nil
}

func telegramText(a Alert) string {
	icon := "📊"
	switch {
	case a.Level == AlertCritical:
		icon = "🚨"
	case a.Kind == KindTrade && a.Level == AlertWarning:
		icon = "🔻"
	case a.Kind == KindTrade:
		icon = "🟢"
	case a.Level == AlertWarning:
		icon = "⚠️"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s*\n\n", icon, escapeMarkdown(a.Title))
	// Monospace keeps the per-symbol rows aligned.
	b.WriteString("```\n")
	b.WriteString(strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(a.Message))
	b.WriteString("\n```")
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// escapeMarkdown escapes MarkdownV2 specials outside code blocks.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
