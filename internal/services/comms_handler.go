package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hockeypickup/comms/internal/repository"
	"github.com/hockeypickup/comms/pkg/metrics"
)

// Notification is one composed outbound email: a recipient, a subject, the
// template to render and the exact token map that template requires.
type Notification struct {
	To       string
	Subject  string
	Template EmailTemplate
	Tokens   map[string]string
}

// CommsHandler composes the notifications for each event type and fans them
// out through the email service. The personal variant is gated by the direct
// recipient's own preference; the broadcast list is notified unconditionally,
// its members opted into everything when they subscribed.
type CommsHandler struct {
	email      EmailSender
	cache      *repository.RedisRepository
	metrics    *metrics.Metrics
	logger     *slog.Logger
	alertEmail string
}

func NewCommsHandler(email EmailSender, cache *repository.RedisRepository, m *metrics.Metrics, logger *slog.Logger, alertEmail string) *CommsHandler {
	return &CommsHandler{
		email:      email,
		cache:      cache,
		metrics:    m,
		logger:     logger,
		alertEmail: alertEmail,
	}
}

// SendRawContentEmail delivers arbitrary text to the operator alert address.
func (h *CommsHandler) SendRawContentEmail(ctx context.Context, subject, rawContent string) error {
	if h.alertEmail == "" {
		return fmt.Errorf("%w: alert email not set", ErrConfig)
	}
	return h.dispatch(ctx, "RawContent", []Notification{{
		To:       h.alertEmail,
		Subject:  subject,
		Template: TemplateRawContent,
		Tokens:   map[string]string{"RAWCONTENT": rawContent},
	}})
}

// SendSignedInEmail alerts the operator address about a sign-in.
func (h *CommsHandler) SendSignedInEmail(ctx context.Context, f *signedInFields) error {
	if h.alertEmail == "" {
		return fmt.Errorf("%w: alert email not set", ErrConfig)
	}
	return h.dispatch(ctx, "SignedIn", []Notification{{
		To:       h.alertEmail,
		Subject:  "Hockey Pickup Sign In",
		Template: TemplateSignedIn,
		Tokens:   map[string]string{"EMAIL": f.Email},
	}})
}

func (h *CommsHandler) SendRegistrationConfirmationEmail(ctx context.Context, f *accountFields) error {
	return h.dispatch(ctx, "RegisterConfirmation", []Notification{{
		To:       f.Email,
		Subject:  "Registration Confirmation",
		Template: TemplateRegisterConfirmation,
		Tokens: map[string]string{
			"EMAIL":            f.Email,
			"FIRSTNAME":        f.FirstName,
			"LASTNAME":         f.LastName,
			"CONFIRMATION_URL": f.ActionURL,
		},
	}})
}

func (h *CommsHandler) SendForgotPasswordEmail(ctx context.Context, f *accountFields) error {
	return h.dispatch(ctx, "ForgotPassword", []Notification{{
		To:       f.Email,
		Subject:  "Reset Password Request",
		Template: TemplateForgotPassword,
		Tokens: map[string]string{
			"EMAIL":     f.Email,
			"FIRSTNAME": f.FirstName,
			"LASTNAME":  f.LastName,
			"RESET_URL": f.ActionURL,
		},
	}})
}

// SendCreateSessionEmails notifies every subscribed address about a new
// session. There is no direct recipient for this event.
func (h *CommsHandler) SendCreateSessionEmails(ctx context.Context, emails []string, f *sessionFields) error {
	date := f.SessionDate.Format(displayDateLayout)
	batch := make([]Notification, 0, len(emails))
	for _, email := range emails {
		batch = append(batch, Notification{
			To:       email,
			Subject:  fmt.Sprintf("Session %s Created", date),
			Template: TemplateCreateSession,
			Tokens: map[string]string{
				"EMAIL":         email,
				"SESSIONDATE":   date,
				"SESSION_URL":   f.SessionURL,
				"NOTE":          f.Note,
				"CREATEDBYNAME": f.CreatedByName,
			},
		})
	}
	return h.dispatch(ctx, "CreateSession", batch)
}

// SendRosterEmails handles AddedToRoster and DeletedFromRoster: one personal
// email gated by the subject's preference plus the broadcast variant to
// every subscribed address.
func (h *CommsHandler) SendRosterEmails(ctx context.Context, eventType string, f *rosterFields, emails []string) error {
	personal, alert := TemplateAddedToRoster, TemplateAddedToRosterAlert
	if eventType == "DeletedFromRoster" {
		personal, alert = TemplateDeletedFromRoster, TemplateDeletedFromRosterAlert
	}

	date := f.SessionDate.Format(displayDateLayout)
	subject := fmt.Sprintf("Roster Update for Session %s", date)
	tokens := func(email string) map[string]string {
		return map[string]string{
			"EMAIL":       email,
			"SESSIONDATE": date,
			"SESSION_URL": f.SessionURL,
			"FIRSTNAME":   f.FirstName,
			"LASTNAME":    f.LastName,
		}
	}

	var batch []Notification
	if f.Preference.ShouldNotify() {
		batch = append(batch, Notification{To: f.Email, Subject: subject, Template: personal, Tokens: tokens(f.Email)})
	}
	for _, email := range emails {
		batch = append(batch, Notification{To: email, Subject: subject, Template: alert, Tokens: tokens(email)})
	}
	return h.dispatch(ctx, eventType, batch)
}

func (h *CommsHandler) SendTeamAssignmentChangeEmail(ctx context.Context, f *teamAssignmentFields, emails []string) error {
	date := f.SessionDate.Format(displayDateLayout)
	subject := fmt.Sprintf("Team Assignment Change for Session %s", date)
	tokens := func(email string) map[string]string {
		return map[string]string{
			"EMAIL":                email,
			"SESSIONDATE":          date,
			"SESSION_URL":          f.SessionURL,
			"FIRSTNAME":            f.FirstName,
			"LASTNAME":             f.LastName,
			"FORMERTEAMASSIGNMENT": f.FormerTeamAssignment,
			"NEWTEAMASSIGNMENT":    f.NewTeamAssignment,
		}
	}

	var batch []Notification
	if f.Preference.ShouldNotify() {
		batch = append(batch, Notification{To: f.Email, Subject: subject, Template: TemplateTeamAssignmentChange, Tokens: tokens(f.Email)})
	}
	for _, email := range emails {
		batch = append(batch, Notification{To: email, Subject: subject, Template: TemplateTeamAssignmentChangeAlert, Tokens: tokens(email)})
	}
	return h.dispatch(ctx, "TeamAssignmentChange", batch)
}

// SendQueuePositionEmails handles the four one-sided buy/sell queue events.
func (h *CommsHandler) SendQueuePositionEmails(ctx context.Context, eventType string, f *queueFields, emails []string) error {
	var personal, alert EmailTemplate
	var subject string
	date := f.SessionDate.Format(displayDateLayout)
	switch eventType {
	case "AddedToBuyQueue":
		personal, alert = TemplateAddedToBuyQueue, TemplateAddedToBuyQueueAlert
		subject = fmt.Sprintf("Buy Queue Update for Session %s", date)
	case "AddedToSellQueue":
		personal, alert = TemplateAddedToSellQueue, TemplateAddedToSellQueueAlert
		subject = fmt.Sprintf("Sell Queue Update for Session %s", date)
	case "CancelledBuyQueuePosition":
		personal, alert = TemplateCancelledBuyQueuePosition, TemplateCancelledBuyQueuePositionAlert
		subject = fmt.Sprintf("Buy Queue Update for Session %s", date)
	case "CancelledSellQueuePosition":
		personal, alert = TemplateCancelledSellQueuePosition, TemplateCancelledSellQueuePositionAlert
		subject = fmt.Sprintf("Sell Queue Update for Session %s", date)
	default:
		return fmt.Errorf("%w: no queue templates for %s", ErrConfig, eventType)
	}

	tokens := func(email string) map[string]string {
		return map[string]string{
			"EMAIL":       email,
			"SESSIONDATE": date,
			"SESSION_URL": f.SessionURL,
			"FIRSTNAME":   f.FirstName,
			"LASTNAME":    f.LastName,
		}
	}

	var batch []Notification
	if f.Preference.ShouldNotify() {
		batch = append(batch, Notification{To: f.Email, Subject: subject, Template: personal, Tokens: tokens(f.Email)})
	}
	for _, email := range emails {
		batch = append(batch, Notification{To: email, Subject: subject, Template: alert, Tokens: tokens(email)})
	}
	return h.dispatch(ctx, eventType, batch)
}

// SendSpotTradeEmails handles the two-sided matched events. Each side's
// personal email is gated by that side's own preference; the buyer always
// gets the buyer-facing template and the seller the seller-facing one, no
// matter which of the two tags fired.
func (h *CommsHandler) SendSpotTradeEmails(ctx context.Context, eventType string, f *tradeFields, emails []string) error {
	alert := TemplateBoughtSpotFromSellerAlert
	if eventType == "SoldSpotToBuyer" {
		alert = TemplateSoldSpotToBuyerAlert
	}

	date := f.SessionDate.Format(displayDateLayout)
	subject := fmt.Sprintf("Spot Transfer for Session %s", date)
	tokens := func(email string) map[string]string {
		return map[string]string{
			"EMAIL":           email,
			"SESSIONDATE":     date,
			"SESSION_URL":     f.SessionURL,
			"BUYERFIRSTNAME":  f.BuyerFirstName,
			"BUYERLASTNAME":   f.BuyerLastName,
			"SELLERFIRSTNAME": f.SellerFirstName,
			"SELLERLASTNAME":  f.SellerLastName,
		}
	}

	var batch []Notification
	if f.BuyerPreference.ShouldNotify() {
		batch = append(batch, Notification{To: f.BuyerEmail, Subject: subject, Template: TemplateBoughtSpotFromSeller, Tokens: tokens(f.BuyerEmail)})
	}
	if f.SellerPreference.ShouldNotify() {
		batch = append(batch, Notification{To: f.SellerEmail, Subject: subject, Template: TemplateSoldSpotToBuyer, Tokens: tokens(f.SellerEmail)})
	}
	for _, email := range emails {
		batch = append(batch, Notification{To: email, Subject: subject, Template: alert, Tokens: tokens(email)})
	}
	return h.dispatch(ctx, eventType, batch)
}

// dispatch sends each composed notification in turn. A transport failure is
// fatal to the whole event; the consumer decides whether to redeliver.
// Addresses the provider previously rejected are skipped, not failed.
func (h *CommsHandler) dispatch(ctx context.Context, eventType string, batch []Notification) error {
	for _, n := range batch {
		if n.To == "" {
			return validationErr(eventType, "empty recipient address")
		}
		if h.isSuppressed(ctx, n.To) {
			h.logger.Warn("skipping suppressed recipient",
				slog.String("type", eventType),
				slog.String("recipient", n.To))
			continue
		}
		if err := h.email.Send(ctx, n.To, n.Subject, n.Template, n.Tokens); err != nil {
			if errors.Is(err, ErrInvalidRecipient) && h.cache != nil {
				_ = h.cache.SuppressAddress(ctx, n.To, 0)
			}
			return fmt.Errorf("sending %s email to %s: %w", eventType, n.To, err)
		}
		h.metrics.IncEmailSent()
	}
	return nil
}

func (h *CommsHandler) isSuppressed(ctx context.Context, address string) bool {
	if h.cache == nil {
		return false
	}
	suppressed, err := h.cache.IsAddressSuppressed(ctx, address)
	if err != nil {
		h.logger.Warn("suppression lookup failed", slog.String("recipient", address), slog.Any("error", err))
		return false
	}
	return suppressed
}
