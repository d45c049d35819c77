package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSlackNotifierPostsText(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, time.Second, discardLogger())
	require.NoError(t, n.Post(context.Background(), "Jo Lee signed in"))
	assert.Equal(t, "Jo Lee signed in", got["text"])
}

func TestSlackNotifierRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, time.Second, discardLogger())
	n.retryCfg.InitialBackoff = time.Millisecond
	n.retryCfg.MaxBackoff = 2 * time.Millisecond

	require.NoError(t, n.Post(context.Background(), "hello"))
	assert.Equal(t, int64(2), calls.Load())
}

func TestSlackNotifierRequiresWebhookURL(t *testing.T) {
	n := NewSlackNotifier("", time.Second, discardLogger())
	err := n.Post(context.Background(), "hello")
	require.ErrorIs(t, err, ErrConfig)
}

func TestSendGridProviderSendsMail(t *testing.T) {
	var auth string
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	p := NewSendGridProvider("sg-key", "noreply@x.com", srv.URL, time.Second, discardLogger())
	err := p.Send(context.Background(), &EmailMessage{
		To:      "jo@x.com",
		Subject: "Registration Confirmation",
		Text:    "hello",
		HTML:    "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer sg-key", auth)
	assert.Equal(t, "Registration Confirmation", payload["subject"])
}

func TestSendGridProviderMapsStatusToFaults(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{
			"bad address field",
			http.StatusBadRequest,
			`{"errors":[{"field":"personalizations.0.to.0.email","message":"Does not contain a valid address."}]}`,
			ErrInvalidRecipient,
		},
		{
			"invalid email message",
			http.StatusBadRequest,
			`{"errors":[{"field":"","message":"invalid email address"}]}`,
			ErrInvalidRecipient,
		},
		{
			"payload bug stays a transport fault",
			http.StatusBadRequest,
			`{"errors":[{"field":"content.0.value","message":"may not be empty"}]}`,
			ErrTransport,
		},
		{"bare 400", http.StatusBadRequest, "", ErrTransport},
		{"service unavailable", http.StatusServiceUnavailable, "", ErrTransport},
		{"unauthorized", http.StatusUnauthorized, "", ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			p := NewSendGridProvider("sg-key", "noreply@x.com", srv.URL, time.Second, discardLogger())
			err := p.Send(context.Background(), &EmailMessage{To: "jo@x.com"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSendGridProviderRejectsEmptyRecipient(t *testing.T) {
	p := NewSendGridProvider("sg-key", "noreply@x.com", "http://unused", time.Second, discardLogger())
	err := p.Send(context.Background(), &EmailMessage{})
	require.ErrorIs(t, err, ErrInvalidRecipient)
}
