package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProvider struct {
	sends []*EmailMessage
	fail  error
}

func (p *recordingProvider) Name() string { return "recording" }

func (p *recordingProvider) Send(_ context.Context, msg *EmailMessage) error {
	if p.fail != nil {
		return p.fail
	}
	p.sends = append(p.sends, msg)
	return nil
}

func newTestEmailService() (*EmailService, *recordingProvider) {
	provider := &recordingProvider{}
	logr := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEmailService(provider, logr), provider
}

func TestEmailServiceRendersTemplate(t *testing.T) {
	svc, provider := newTestEmailService()

	err := svc.Send(context.Background(), "jo@x.com", "Reset Password Request", TemplateForgotPassword, map[string]string{
		"EMAIL":     "jo@x.com",
		"FIRSTNAME": "Jo",
		"LASTNAME":  "Lee",
		"RESET_URL": "https://x/reset",
	})
	require.NoError(t, err)

	require.Len(t, provider.sends, 1)
	msg := provider.sends[0]
	assert.Equal(t, "jo@x.com", msg.To)
	assert.Equal(t, "Reset Password Request", msg.Subject)
	assert.Contains(t, msg.Text, "Hi Jo Lee,")
	assert.Contains(t, msg.Text, "https://x/reset")
	assert.NotContains(t, msg.Text, "{{")
	assert.Contains(t, msg.HTML, "<br />")
}

func TestEmailServiceMissingTokenFailsBeforeSend(t *testing.T) {
	svc, provider := newTestEmailService()

	err := svc.Send(context.Background(), "jo@x.com", "Reset Password Request", TemplateForgotPassword, map[string]string{
		"EMAIL":     "jo@x.com",
		"FIRSTNAME": "Jo",
		"LASTNAME":  "Lee",
		// RESET_URL deliberately absent
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "RESET_URL")
	assert.Empty(t, provider.sends, "no provider call for an invalid composition")
}

func TestEmailServiceUnknownTemplate(t *testing.T) {
	svc, provider := newTestEmailService()

	err := svc.Send(context.Background(), "jo@x.com", "x", EmailTemplate("NoSuchTemplate"), map[string]string{})
	require.ErrorIs(t, err, ErrConfig)
	assert.Empty(t, provider.sends)
}

func TestEmailServiceProviderErrorPropagates(t *testing.T) {
	svc, provider := newTestEmailService()
	provider.fail = fmt.Errorf("%w: status 503", ErrTransport)

	err := svc.Send(context.Background(), "jo@x.com", "x", TemplateSignedIn, map[string]string{"EMAIL": "jo@x.com"})
	require.ErrorIs(t, err, ErrTransport)
}

func TestEveryConfiguredTemplateResourceExists(t *testing.T) {
	for template, cfg := range templateConfigs {
		raw, err := templateFS.ReadFile("email_templates/" + cfg.file)
		require.NoError(t, err, "template %s resource missing", template)
		body := string(raw)
		// Required tokens that are not the implicit recipient address
		// should appear in the body so the registry and the file agree.
		for _, token := range cfg.requiredTokens {
			assert.Contains(t, body, "{{"+token+"}}", "template %s should use token %s", template, token)
		}
	}
}

func TestRenderTokensLeavesUnknownPlaceholders(t *testing.T) {
	out := renderTokens("Hello {{NAME}}, see {{MISSING}}", map[string]string{"NAME": "Jo"})
	assert.Equal(t, "Hello Jo, see {{MISSING}}", out)
}

func TestRenderTokensHandlesWhitespace(t *testing.T) {
	out := renderTokens("Hi {{ NAME }}", map[string]string{"NAME": "Jo"})
	assert.Equal(t, "Hi Jo", out)
}
