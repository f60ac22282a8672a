package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// telegramMessageLimit is the sendMessage text limit in characters.
const telegramMessageLimit = 4096

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatIDs  []string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken string, chatIDs []string, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatIDs:  chatIDs,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本，每个 chat 单独发送。
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	text := renderMessage(note)
	for _, chatID := range n.chatIDs {
		if err := n.send(ctx, chatID, text); err != nil {
			return fmt.Errorf("telegram chat %s: %w", chatID, err)
		}
	}

	n.logger.Info().Str("title", note.Title).
		Int("chats", len(n.chatIDs)).
		Msg("告警已发送 (Telegram)")
	return nil
}

func (n *TelegramNotifier) send(ctx context.Context, chatID, text string) error {
	payload := map[string]string{
		"chat_id": chatID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(note.Title)
	builder.WriteString("\n\n")
	builder.WriteString(note.Text)

	text := builder.String()
	if runes := []rune(text); len(runes) > telegramMessageLimit {
		text = string(runes[:telegramMessageLimit-1]) + "…"
	}
	return text
}

var _ Notifier = (*TelegramNotifier)(nil)
