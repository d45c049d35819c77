package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hockeypickup/comms/pkg/retry"
)

// ChatNotifier posts plain-text updates to the shared activity channel.
type ChatNotifier interface {
	Post(ctx context.Context, text string) error
}

// SlackNotifier posts through a Slack incoming webhook. Webhook posts are
// cheap and transient failures are common enough that a few bounded attempts
// are worth it; email delivery is deliberately not retried here, redelivery
// of the whole event belongs to the queue.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
	retryCfg   retry.Config
}

func NewSlackNotifier(webhookURL string, timeout time.Duration, logger *slog.Logger) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	n := &SlackNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
	n.retryCfg = retry.Config{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Notify: func(attempt int, err error) {
			logger.Warn("chat post retry", slog.Int("attempt", attempt), slog.Any("error", err))
		},
	}
	return n
}

func (n *SlackNotifier) Post(ctx context.Context, text string) error {
	if n.webhookURL == "" {
		return fmt.Errorf("%w: slack webhook url not set", ErrConfig)
	}
	return retry.Do(ctx, n.retryCfg, func() error {
		return n.post(ctx, text)
	})
}

func (n *SlackNotifier) post(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
