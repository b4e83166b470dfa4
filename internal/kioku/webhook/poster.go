package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bdobrica/Kioku/common/retry"
)

const defaultSlackAPIBase = "https://slack.com/api"

// Poster delivers a reply to a chat channel.
type Poster interface {
	PostMessage(ctx context.Context, channel, text string) error
}

// SlackPoster posts replies with the Web API chat.postMessage method.
type SlackPoster struct {
	token   string
	baseURL string
	client  *http.Client
	retry   retry.Config
}

// NewSlackPoster creates a SlackPoster. An empty baseURL uses the public API.
func NewSlackPoster(token, baseURL string) *SlackPoster {
	if baseURL == "" {
		baseURL = defaultSlackAPIBase
	}
	return &SlackPoster{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		retry:   retry.DefaultConfig,
	}
}

// WithRetry overrides the backoff used for transient delivery failures.
func (p *SlackPoster) WithRetry(cfg retry.Config) *SlackPoster {
	p.retry = cfg
	return p
}

// PostMessage sends text to channel. Network errors, 429 and 5xx responses
// are retried; API-level errors such as channel_not_found are not.
func (p *SlackPoster) PostMessage(ctx context.Context, channel, text string) error {
	data, err := json.Marshal(map[string]string{"channel": channel, "text": text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return retry.Do(ctx, p.retry, func() error {
		return p.post(ctx, data)
	})
}

func (p *SlackPoster) post(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat.postMessage", bytes.NewReader(data))
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("chat.postMessage: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("chat.postMessage: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return retry.Permanent(fmt.Errorf("chat.postMessage: status %d", resp.StatusCode))
	}
	if !gjson.GetBytes(body, "ok").Bool() {
		return retry.Permanent(fmt.Errorf("chat.postMessage: %s", gjson.GetBytes(body, "error").String()))
	}
	return nil
}
