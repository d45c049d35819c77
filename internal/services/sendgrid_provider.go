package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultSendGridEndpoint = "https://api.sendgrid.com/v3/mail/send"

// SendGridProvider sends email through the SendGrid v3 mail API.
type SendGridProvider struct {
	apiKey   string
	from     string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewSendGridProvider(apiKey, from, endpoint string, timeout time.Duration, logger *slog.Logger) *SendGridProvider {
	if endpoint == "" {
		endpoint = defaultSendGridEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SendGridProvider{
		apiKey:   apiKey,
		from:     from,
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (p *SendGridProvider) Name() string {
	return "sendgrid"
}

func (p *SendGridProvider) Send(ctx context.Context, msg *EmailMessage) error {
	if msg.To == "" {
		return fmt.Errorf("%w: no recipient", ErrInvalidRecipient)
	}

	reqMap := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{"to": []map[string]string{{"email": msg.To}}},
		},
		"from":    map[string]string{"email": p.from},
		"subject": msg.Subject,
		"content": []map[string]string{
			{"type": "text/plain", "value": msg.Text},
			{"type": "text/html", "value": msg.HTML},
		},
	}

	body, err := json.Marshal(reqMap)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		p.logger.Error("sendgrid rejected message",
			slog.String("recipient", msg.To),
			slog.Int("status", resp.StatusCode),
			slog.String("response", string(detail)))
		if resp.StatusCode == http.StatusBadRequest && isRecipientError(detail) {
			return fmt.Errorf("%w: sendgrid status %d", ErrInvalidRecipient, resp.StatusCode)
		}
		return fmt.Errorf("%w: sendgrid status %d", ErrTransport, resp.StatusCode)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// isRecipientError reports whether a SendGrid 400 response blames the
// recipient address rather than some other part of the payload. Only those
// rejections justify suppressing the address; a malformed request is our
// bug and must keep failing loudly.
func isRecipientError(body []byte) bool {
	var parsed struct {
		Errors []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false
	}
	for _, e := range parsed.Errors {
		if strings.Contains(e.Field, ".to.") || strings.HasSuffix(e.Field, ".to") {
			return true
		}
		if strings.Contains(strings.ToLower(e.Message), "invalid email") {
			return true
		}
	}
	return false
}
