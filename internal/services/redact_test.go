package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hockeypickup/comms/internal/models"
)

func TestRedactNotificationEmails(t *testing.T) {
	tests := []struct {
		name       string
		production bool
		emails     []string
		want       []string
	}{
		{"production untouched", true, []string{"a@x.com", "b@x.com", "c@x.com"}, []string{"a@x.com", "b@x.com", "c@x.com"}},
		{"non-production collapses", false, []string{"a@x.com", "b@x.com", "c@x.com"}, []string{"ops@x.com"}},
		{"single entry untouched", false, []string{"a@x.com"}, []string{"a@x.com"}},
		{"empty untouched", false, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &models.CommsMessage{NotificationEmails: tt.emails}
			redactNotificationEmails(msg, tt.production, "ops@x.com")
			assert.Equal(t, tt.want, msg.NotificationEmails)
		})
	}
}

func TestRedactNotificationEmailsIdempotent(t *testing.T) {
	msg := &models.CommsMessage{NotificationEmails: []string{"a@x.com", "b@x.com", "c@x.com"}}

	redactNotificationEmails(msg, false, "ops@x.com")
	once := append([]string(nil), msg.NotificationEmails...)
	redactNotificationEmails(msg, false, "ops@x.com")

	assert.Equal(t, once, msg.NotificationEmails)
	assert.Equal(t, []string{"ops@x.com"}, msg.NotificationEmails)
}
