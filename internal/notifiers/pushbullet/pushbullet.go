package pushbullet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shyim/docker-pg-backup/internal/notification"
)

func init() {
	notification.Register(&PushbulletType{})
}

const (
	defaultAPIURL  = "https://api.pushbullet.com/v2/pushes"
	defaultTitle   = "Docker Postgres Backup"
	defaultMaxSize = 500 // KiB
)

// PushbulletType implements NotifierType for Pushbullet
type PushbulletType struct{}

// Name returns the notifier type identifier
func (t *PushbulletType) Name() string {
	return "pushbullet"
}

// Create instantiates a Pushbullet notifier from options.
//
// Options:
//   - token: access token (required)
//   - title: push title, defaults to "Docker Postgres Backup"
//   - max-size: body limit in KiB before shortening, 0 disables (default 500)
//   - api-url: pushes endpoint override
func (t *PushbulletType) Create(name string, options map[string]string) (notification.Notifier, error) {
	token, ok := options["token"]
	if !ok || token == "" {
		return nil, fmt.Errorf("pushbullet notifier %q requires 'token' option", name)
	}

	title := options["title"]
	if title == "" {
		title = defaultTitle
	}

	maxSize := defaultMaxSize
	if val, ok := options["max-size"]; ok && val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("pushbullet notifier %q has invalid max-size %q", name, val)
		}
		maxSize = n
	}

	apiURL := options["api-url"]
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	return &PushbulletNotifier{
		name:    name,
		token:   token,
		title:   title,
		maxSize: maxSize * 1024,
		apiURL:  apiURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// PushbulletNotifier sends notes via the Pushbullet API
type PushbulletNotifier struct {
	name    string
	token   string
	title   string
	maxSize int // bytes
	apiURL  string
	client  *http.Client
}

// Name returns the notifier instance name
func (p *PushbulletNotifier) Name() string {
	return p.name
}

// Type returns the notifier type
func (p *PushbulletNotifier) Type() string {
	return "pushbullet"
}

// Send pushes a note for the event
func (p *PushbulletNotifier) Send(ctx context.Context, event notification.Event) error {
	body := event.Title()
	if text := event.Text(); text != "" {
		body += "\n\n" + text
	}

	payload := map[string]string{
		"type":  "note",
		"title": p.title,
		"body":  shorten(body, p.maxSize),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.token, "")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("pushbullet API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return nil
}

// shorten keeps the head and tail of msg when it exceeds maxSize bytes and
// reports how many lines were cut from the middle
func shorten(msg string, maxSize int) string {
	if maxSize <= 0 || len(msg) <= maxSize {
		return msg
	}

	// Cut on rune boundaries, never growing past half on either side
	headEnd, tailStart := maxSize/2, len(msg)-maxSize/2
	for headEnd > 0 && !utf8.RuneStart(msg[headEnd]) {
		headEnd--
	}
	for tailStart < len(msg) && !utf8.RuneStart(msg[tailStart]) {
		tailStart++
	}
	head, middle, tail := msg[:headEnd], msg[headEnd:tailStart], msg[tailStart:]

	return "NOTE: Log was too big for pushbullet and was shortened\n\n" +
		head +
		fmt.Sprintf("[...]\n\n\n --- LOG WAS TOO BIG - %d LINES REMOVED --\n\n\n[...]", strings.Count(middle, "\n")) +
		tail
}
