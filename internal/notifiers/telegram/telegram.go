package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shyim/docker-pg-backup/internal/notification"
)

func init() {
	notification.Register(&TelegramType{})
}

// TelegramType implements NotifierType for Telegram
type TelegramType struct{}

// Name returns the notifier type identifier
func (t *TelegramType) Name() string {
	return "telegram"
}

// Create instantiates a Telegram notifier from options
func (t *TelegramType) Create(name string, options map[string]string) (notification.Notifier, error) {
	token, ok := options["token"]
	if !ok || token == "" {
		return nil, fmt.Errorf("telegram notifier %q requires 'token' option", name)
	}

	chatID, ok := options["chat-id"]
	if !ok || chatID == "" {
		return nil, fmt.Errorf("telegram notifier %q requires 'chat-id' option", name)
	}

	apiURL := options["api-url"]
	if apiURL == "" {
		apiURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		name:   name,
		token:  token,
		chatID: chatID,
		apiURL: strings.TrimSuffix(apiURL, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// TelegramNotifier sends notifications via Telegram Bot API
type TelegramNotifier struct {
	name   string
	token  string
	chatID string
	apiURL string
	client *http.Client
}

// Name returns the notifier instance name
func (t *TelegramNotifier) Name() string {
	return t.name
}

// Type returns the notifier type
func (t *TelegramNotifier) Type() string {
	return "telegram"
}

// Send sends a notification to Telegram
func (t *TelegramNotifier) Send(ctx context.Context, event notification.Event) error {
	message := t.formatMessage(event)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// formatMessage formats an event into a Telegram message
func (t *TelegramNotifier) formatMessage(event notification.Event) string {
	emoji := "✅"
	if event.Failed() {
		emoji = "❌"
	}

	msg := fmt.Sprintf("%s <b>%s</b>\n\n", emoji, event.Title())

	if event.ContainerName != "" {
		msg += fmt.Sprintf("🐳 Container: <code>%s</code>\n", html.EscapeString(event.ContainerName))
	}

	if event.Database != "" {
		msg += fmt.Sprintf("🗄 Database: <code>%s</code>\n", html.EscapeString(event.Database))
	}

	if event.BackupKey != "" {
		msg += fmt.Sprintf("🔑 Key: <code>%s</code>\n", html.EscapeString(event.BackupKey))
	}

	if event.Size > 0 {
		msg += fmt.Sprintf("📊 Size: %s\n", humanize.IBytes(uint64(event.Size)))
	}

	if event.Duration > 0 {
		msg += fmt.Sprintf("⏱ Duration: %s\n", event.Duration.Round(time.Millisecond))
	}

	if event.Type == notification.EventRotationCompleted {
		msg += fmt.Sprintf("🗑 Kept %d, deleted %d\n", event.Kept, event.Deleted)
	}

	if event.Message != "" {
		msg += fmt.Sprintf("\n<pre>%s</pre>\n", html.EscapeString(event.Message))
	}

	if event.Error != nil {
		msg += fmt.Sprintf("\n⚠️ Error: <code>%s</code>", html.EscapeString(event.Error.Error()))
	}

	return msg
}
