package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hockeypickup/comms/internal/models"
)

func TestParseSessionDate(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{"2024-05-01T10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), false},
		{"2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), false},
		{"05/01/2024", time.Time{}, true},
		{"", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseSessionDate(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.True(t, tt.want.Equal(got), "parsing %q", tt.raw)
	}
}

func TestExtractReportsEveryMissingField(t *testing.T) {
	msg := &models.CommsMessage{
		Metadata:            map[string]string{"Type": "TeamAssignmentChange"},
		CommunicationMethod: map[string]string{"Email": "jo@x.com"},
		RelatedEntities:     map[string]string{"FirstName": "Jo"},
		MessageData:         map[string]string{"SessionUrl": "https://x/s/1"},
	}

	_, err := extractTeamAssignmentChange(msg)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "CommunicationMethod.NotificationPreference")
	assert.Contains(t, err.Error(), "RelatedEntities.LastName")
	assert.Contains(t, err.Error(), "MessageData.SessionDate")
	assert.Contains(t, err.Error(), "MessageData.FormerTeamAssignment")
	assert.Contains(t, err.Error(), "MessageData.NewTeamAssignment")
}

func TestExtractSpotTrade(t *testing.T) {
	msg := &models.CommsMessage{
		Metadata: map[string]string{"Type": "BoughtSpotFromSeller"},
		CommunicationMethod: map[string]string{
			"BuyerEmail":                   "buyer@x.com",
			"BuyerNotificationPreference":  "Team",
			"SellerEmail":                  "seller@x.com",
			"SellerNotificationPreference": "None",
		},
		RelatedEntities: map[string]string{
			"BuyerFirstName":  "Jo",
			"BuyerLastName":   "Lee",
			"SellerFirstName": "Sam",
			"SellerLastName":  "Roy",
		},
		MessageData: map[string]string{
			"SessionDate": "2024-05-01T10:00:00",
			"SessionUrl":  "https://x/s/1",
		},
	}

	f, err := extractSpotTrade(msg, "BoughtSpotFromSeller")
	require.NoError(t, err)
	assert.Equal(t, "buyer@x.com", f.BuyerEmail)
	assert.Equal(t, models.PreferenceTeam, f.BuyerPreference)
	assert.Equal(t, models.PreferenceNone, f.SellerPreference)
	assert.Equal(t, "Sam", f.SellerFirstName)
	assert.Equal(t, "Wednesday, 05/01/2024, 10:00", f.SessionDate.Format(displayDateLayout))
}

func TestExtractQueuePositionUsesSidePrefix(t *testing.T) {
	msg := &models.CommsMessage{
		Metadata: map[string]string{"Type": "AddedToSellQueue"},
		CommunicationMethod: map[string]string{
			"SellerEmail":                  "seller@x.com",
			"SellerNotificationPreference": "All",
		},
		RelatedEntities: map[string]string{
			"SellerFirstName": "Sam",
			"SellerLastName":  "Roy",
		},
		MessageData: map[string]string{
			"SessionDate": "2024-05-01T10:00:00",
			"SessionUrl":  "https://x/s/1",
		},
	}

	f, err := extractQueuePosition(msg, "AddedToSellQueue", "Seller")
	require.NoError(t, err)
	assert.Equal(t, "seller@x.com", f.Email)
	assert.Equal(t, "Sam", f.FirstName)

	// Buyer-prefixed lookup against the same bags is a validation fault.
	_, err = extractQueuePosition(msg, "AddedToBuyQueue", "Buyer")
	assert.ErrorIs(t, err, ErrValidation)
}
