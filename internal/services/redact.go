package services

import "github.com/hockeypickup/comms/internal/models"

// redactNotificationEmails keeps automated traffic from non-production
// deployments away from real subscribers: outside production, a broadcast
// list with more than one entry collapses to the operator alert address.
// A second application sees a single-entry list and leaves it alone, so the
// guard is idempotent.
func redactNotificationEmails(msg *models.CommsMessage, production bool, alertEmail string) {
	if production {
		return
	}
	if len(msg.NotificationEmails) <= 1 {
		return
	}
	msg.NotificationEmails = []string{alertEmail}
}
