package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsdesk/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"

	// Bot API sends occasionally hit rate limits or flaky 5xx responses;
	// a short bounded retry keeps one hiccup from dropping a delivery.
	sendRetryLimit = 3
)

// Messenger sends messages and photos through the Telegram Bot API.
type Messenger struct {
	apiBase    string
	botToken   string
	client     *http.Client
	retryDelay time.Duration
}

var _ ports.Messenger = (*Messenger)(nil)

// NewMessenger registers the bot token. An empty apiBase uses the public
// Bot API endpoint.
func NewMessenger(botToken, apiBase string) *Messenger {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Messenger{
		apiBase:    apiBase,
		botToken:   botToken,
		client:     &http.Client{Timeout: 10 * time.Second},
		retryDelay: time.Second,
	}
}

// SendMessage posts a Markdown message to a chat.
func (m *Messenger) SendMessage(ctx context.Context, chatID, text string) error {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")
	return m.call(ctx, "sendMessage", form)
}

// SendPhoto posts a photo by URL with a Markdown caption.
func (m *Messenger) SendPhoto(ctx context.Context, chatID, photoURL, caption string) error {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("photo", photoURL)
	form.Set("caption", caption)
	form.Set("parse_mode", "Markdown")
	return m.call(ctx, "sendPhoto", form)
}

func (m *Messenger) call(ctx context.Context, method string, form url.Values) error {
	if m.botToken == "" {
		return fmt.Errorf("telegram messenger misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", m.apiBase, m.botToken, method)

	var lastErr error
	for attempt := 1; attempt <= sendRetryLimit; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.retryDelay):
			}
		}

		retry, err := m.post(ctx, endpoint, form)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}

	return fmt.Errorf("telegram %s: %w", method, lastErr)
}

func (m *Messenger) post(ctx context.Context, endpoint string, form url.Values) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return true, fmt.Errorf("telegram error: %s", resp.Status)
	default:
		return false, fmt.Errorf("telegram error: %s", resp.Status)
	}
}
