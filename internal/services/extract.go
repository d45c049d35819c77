package services

import (
	"strings"
	"time"

	"github.com/hockeypickup/comms/internal/models"
)

const (
	// sessionDateLayout is the round-trippable format the producer writes.
	sessionDateLayout = "2006-01-02T15:04:05"
	// displayDateLayout is how session dates appear in subjects and tokens.
	displayDateLayout = "Monday, 01/02/2006, 15:04"
)

// fieldReader collects required fields from one message's bags. Every getter
// records the field it could not produce; err() reduces the whole extraction
// to a single validation outcome so partial results never leak out.
type fieldReader struct {
	msg     *models.CommsMessage
	missing []string
}

func newFieldReader(msg *models.CommsMessage) *fieldReader {
	return &fieldReader{msg: msg}
}

func (r *fieldReader) comm(key string) string {
	v, ok := r.msg.CommunicationMethod[key]
	if !ok {
		r.missing = append(r.missing, "CommunicationMethod."+key)
	}
	return v
}

func (r *fieldReader) related(key string) string {
	v, ok := r.msg.RelatedEntities[key]
	if !ok {
		r.missing = append(r.missing, "RelatedEntities."+key)
	}
	return v
}

func (r *fieldReader) message(key string) string {
	v, ok := r.msg.MessageData[key]
	if !ok {
		r.missing = append(r.missing, "MessageData."+key)
	}
	return v
}

func (r *fieldReader) date(key string) time.Time {
	raw, ok := r.msg.MessageData[key]
	if !ok {
		r.missing = append(r.missing, "MessageData."+key)
		return time.Time{}
	}
	t, err := parseSessionDate(raw)
	if err != nil {
		r.missing = append(r.missing, "MessageData."+key+" (unparsable date)")
	}
	return t
}

func (r *fieldReader) preference(key string) models.NotificationPreference {
	raw, ok := r.msg.CommunicationMethod[key]
	if !ok {
		r.missing = append(r.missing, "CommunicationMethod."+key)
		return models.PreferenceNone
	}
	p, err := models.ParseNotificationPreference(raw)
	if err != nil {
		r.missing = append(r.missing, "CommunicationMethod."+key+" (unknown preference)")
	}
	return p
}

func (r *fieldReader) err(eventType string) error {
	if len(r.missing) == 0 {
		return nil
	}
	return validationErr(eventType, strings.Join(r.missing, ", "))
}

func parseSessionDate(raw string) (time.Time, error) {
	t, err := time.Parse(sessionDateLayout, raw)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// Per-event schemas. One small struct per event family keeps every consumer
// of the bags working against typed, already-validated data.

type signedInFields struct {
	Email string
}

func extractSignedIn(msg *models.CommsMessage) (*signedInFields, error) {
	r := newFieldReader(msg)
	f := &signedInFields{Email: r.comm("Email")}
	return f, r.err("SignedIn")
}

// accountFields covers RegisterConfirmation and ForgotPassword, which differ
// only in which action url the message bag carries.
type accountFields struct {
	Email     string
	UserID    string
	FirstName string
	LastName  string
	ActionURL string
}

func extractAccountAction(msg *models.CommsMessage, eventType, urlKey string) (*accountFields, error) {
	r := newFieldReader(msg)
	f := &accountFields{
		Email:     r.comm("Email"),
		UserID:    r.related("UserId"),
		FirstName: r.related("FirstName"),
		LastName:  r.related("LastName"),
		ActionURL: r.message(urlKey),
	}
	return f, r.err(eventType)
}

// profileFields covers the chat-only account activity events.
type profileFields struct {
	Email     string
	FirstName string
	LastName  string
	Detail    string
}

func extractProfile(msg *models.CommsMessage, eventType, detailKey string) (*profileFields, error) {
	r := newFieldReader(msg)
	f := &profileFields{
		Email:     r.comm("Email"),
		FirstName: r.related("FirstName"),
		LastName:  r.related("LastName"),
	}
	if detailKey != "" {
		f.Detail = r.message(detailKey)
	}
	return f, r.err(eventType)
}

type sessionFields struct {
	SessionDate   time.Time
	SessionURL    string
	Note          string
	CreatedByName string
}

func extractCreateSession(msg *models.CommsMessage) (*sessionFields, error) {
	r := newFieldReader(msg)
	f := &sessionFields{
		SessionDate:   r.date("SessionDate"),
		SessionURL:    r.message("SessionUrl"),
		Note:          r.message("Note"),
		CreatedByName: r.message("CreatedByName"),
	}
	return f, r.err("CreateSession")
}

// rosterFields covers AddedToRoster and DeletedFromRoster.
type rosterFields struct {
	Email       string
	Preference  models.NotificationPreference
	FirstName   string
	LastName    string
	SessionDate time.Time
	SessionURL  string
}

func extractRoster(msg *models.CommsMessage, eventType string) (*rosterFields, error) {
	r := newFieldReader(msg)
	f := &rosterFields{
		Email:       r.comm("Email"),
		Preference:  r.preference("NotificationPreference"),
		FirstName:   r.related("FirstName"),
		LastName:    r.related("LastName"),
		SessionDate: r.date("SessionDate"),
		SessionURL:  r.message("SessionUrl"),
	}
	return f, r.err(eventType)
}

type teamAssignmentFields struct {
	rosterFields
	FormerTeamAssignment string
	NewTeamAssignment    string
}

func extractTeamAssignmentChange(msg *models.CommsMessage) (*teamAssignmentFields, error) {
	r := newFieldReader(msg)
	f := &teamAssignmentFields{
		rosterFields: rosterFields{
			Email:       r.comm("Email"),
			Preference:  r.preference("NotificationPreference"),
			FirstName:   r.related("FirstName"),
			LastName:    r.related("LastName"),
			SessionDate: r.date("SessionDate"),
			SessionURL:  r.message("SessionUrl"),
		},
		FormerTeamAssignment: r.message("FormerTeamAssignment"),
		NewTeamAssignment:    r.message("NewTeamAssignment"),
	}
	return f, r.err("TeamAssignmentChange")
}

// queueFields covers the one-sided buy/sell queue events. The bag keys are
// prefixed with the side ("Buyer" or "Seller").
type queueFields struct {
	Email       string
	Preference  models.NotificationPreference
	FirstName   string
	LastName    string
	SessionDate time.Time
	SessionURL  string
}

func extractQueuePosition(msg *models.CommsMessage, eventType, side string) (*queueFields, error) {
	r := newFieldReader(msg)
	f := &queueFields{
		Email:       r.comm(side + "Email"),
		Preference:  r.preference(side + "NotificationPreference"),
		FirstName:   r.related(side + "FirstName"),
		LastName:    r.related(side + "LastName"),
		SessionDate: r.date("SessionDate"),
		SessionURL:  r.message("SessionUrl"),
	}
	return f, r.err(eventType)
}

// tradeFields covers the two-sided matched buy/sell events.
type tradeFields struct {
	BuyerEmail       string
	BuyerPreference  models.NotificationPreference
	BuyerFirstName   string
	BuyerLastName    string
	SellerEmail      string
	SellerPreference models.NotificationPreference
	SellerFirstName  string
	SellerLastName   string
	SessionDate      time.Time
	SessionURL       string
}

func extractSpotTrade(msg *models.CommsMessage, eventType string) (*tradeFields, error) {
	r := newFieldReader(msg)
	f := &tradeFields{
		BuyerEmail:       r.comm("BuyerEmail"),
		BuyerPreference:  r.preference("BuyerNotificationPreference"),
		BuyerFirstName:   r.related("BuyerFirstName"),
		BuyerLastName:    r.related("BuyerLastName"),
		SellerEmail:      r.comm("SellerEmail"),
		SellerPreference: r.preference("SellerNotificationPreference"),
		SellerFirstName:  r.related("SellerFirstName"),
		SellerLastName:   r.related("SellerLastName"),
		SessionDate:      r.date("SessionDate"),
		SessionURL:       r.message("SessionUrl"),
	}
	return f, r.err(eventType)
}
