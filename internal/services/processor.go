package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hockeypickup/comms/internal/models"
	"github.com/hockeypickup/comms/pkg/metrics"
)

type handlerFunc func(ctx context.Context, msg *models.CommsMessage) error

// CommsProcessor routes one communication event to its handler. Every
// dedicated handler validates first, posts a chat summary, then composes and
// dispatches emails; the chat post is never skipped because email work fails.
// Unknown type tags fall through to a chat dump so no event is silently
// dropped before a dedicated handler exists.
type CommsProcessor struct {
	handler    *CommsHandler
	chat       ChatNotifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	production bool
	alertEmail string
	routes     map[string]handlerFunc
}

func NewCommsProcessor(handler *CommsHandler, chat ChatNotifier, m *metrics.Metrics, logger *slog.Logger, production bool, alertEmail string) *CommsProcessor {
	p := &CommsProcessor{
		handler:    handler,
		chat:       chat,
		metrics:    m,
		logger:     logger,
		production: production,
		alertEmail: alertEmail,
	}
	p.routes = map[string]handlerFunc{
		"SignedIn":                   p.processSignedIn,
		"RegisterConfirmation":       p.processRegisterConfirmation,
		"ForgotPassword":             p.processForgotPassword,
		"AddedPaymentMethod":         p.processAddedPaymentMethod,
		"PhotoUploaded":              p.processPhotoUploaded,
		"SaveUser":                   p.processSaveUser,
		"SaveUserPreferences":        p.processSaveUserPreferences,
		"CreateSession":              p.processCreateSession,
		"AddedToRoster":              p.processRosterChange,
		"DeletedFromRoster":          p.processRosterChange,
		"TeamAssignmentChange":       p.processTeamAssignmentChange,
		"AddedToBuyQueue":            p.processQueuePosition,
		"AddedToSellQueue":           p.processQueuePosition,
		"CancelledBuyQueuePosition":  p.processQueuePosition,
		"CancelledSellQueuePosition": p.processQueuePosition,
		"BoughtSpotFromSeller":       p.processSpotTrade,
		"SoldSpotToBuyer":            p.processSpotTrade,
	}
	return p
}

// Process handles exactly one event. The envelope is redacted before any
// handler sees it so non-production traffic can never reach real subscribers.
func (p *CommsProcessor) Process(ctx context.Context, msg *models.CommsMessage) error {
	p.metrics.IncConsumed()
	p.logger.Info("processing comms event",
		slog.String("event_id", msg.EventID()),
		slog.String("type", msg.Type()))

	redactNotificationEmails(msg, p.production, p.alertEmail)

	handler, ok := p.routes[msg.Type()]
	if !ok {
		handler = p.processUnknown
	}

	if err := handler(ctx, msg); err != nil {
		p.metrics.IncFailed()
		p.logger.Error("event processing failed",
			slog.String("event_id", msg.EventID()),
			slog.String("type", msg.Type()),
			slog.Any("error", err))
		return fmt.Errorf("processing %s event: %w", msg.Type(), err)
	}

	p.metrics.IncProcessed()
	return nil
}

func (p *CommsProcessor) post(ctx context.Context, text string) error {
	if err := p.chat.Post(ctx, text); err != nil {
		return fmt.Errorf("%w: chat post: %v", ErrTransport, err)
	}
	p.metrics.IncChatPost()
	return nil
}

func (p *CommsProcessor) processSignedIn(ctx context.Context, msg *models.CommsMessage) error {
	f, err := extractSignedIn(msg)
	if err != nil {
		return err
	}
	if err := p.post(ctx, fmt.Sprintf("%s signed in", f.Email)); err != nil {
		return err
	}
	return p.handler.SendSignedInEmail(ctx, f)
}

func (p *CommsProcessor) processRegisterConfirmation(ctx context.Context, msg *models.CommsMessage) error {
	f, err := extractAccountAction(msg, "RegisterConfirmation", "ConfirmationUrl")
	if err != nil {
		return err
	}
	if err := p.post(ctx, fmt.Sprintf("%s %s (%s) registered", f.FirstName, f.LastName, f.Email)); err != nil {
		return err
	}
	return p.handler.SendRegistrationConfirmationEmail(ctx, f)
}

func (p *CommsProcessor) processForgotPassword(ctx context.Context, msg *models.CommsMessage) error {
	f, err := extractAccountAction(msg, "ForgotPassword", "ResetUrl")
	if err != nil {
		return err
	}
	if err := p.post(ctx, fmt.Sprintf("%s %s (%s) requested a password reset", f.FirstName, f.LastName, f.Email)); err != nil {
		return err
	}
	return p.handler.SendForgotPasswordEmail(ctx, f)
}

func (p *CommsProcessor) processAddedPaymentMethod(ctx context.Context, msg *models.CommsMessage) error {
	f, err := extractProfile(msg, "AddedPaymentMethod", "PaymentMethodType")
	if err != nil {
		return err
	}
	return p.post(ctx, fmt.Sprintf("%s %s added a %s payment method", f.FirstName, f.LastName, f.Detail))
}

func (p *CommsProcessor) processPhotoUploaded(ctx context.Context, msg *models.CommsMessage) error {
	f, err := extractProfile(msg, "PhotoUploaded", "")
	if err != nil {
		return err
	}
	return p.post(ctx, fmt.Sprintf("%s %s uploaded a new profile photo", f.FirstName, f.LastName))
}

func (p *CommsProcessor) processSaveUser(ctx context.Context, msg *models.CommsMessage) error {
	f, err := extractProfile(msg, "SaveUser", "")
	if err != nil {
		return err
	}
	return p.post(ctx, fmt.Sprintf("%s %s updated their profile", f.FirstName, f.LastName))
}

func (p *CommsProcessor) processSaveUserPreferences(ctx context.Context, msg *models.CommsMessage) error {
	f, err := extractProfile(msg, "SaveUserPreferences", "")
	if err != nil {
		return err
	}
	return p.post(ctx, fmt.Sprintf("%s %s updated their notification preferences", f.FirstName, f.LastName))
}

func (p *CommsProcessor) processCreateSession(ctx context.Context, msg *models.CommsMessage) error {
	f, err := extractCreateSession(msg)
	if err != nil {
		return err
	}
	if err := p.post(ctx, fmt.Sprintf("%s created a session for %s", f.CreatedByName, f.SessionDate.Format(displayDateLayout))); err != nil {
		return err
	}
	return p.handler.SendCreateSessionEmails(ctx, msg.NotificationEmails, f)
}

func (p *CommsProcessor) processRosterChange(ctx context.Context, msg *models.CommsMessage) error {
	eventType := msg.Type()
	f, err := extractRoster(msg, eventType)
	if err != nil {
		return err
	}
	action := "was added to"
	if eventType == "DeletedFromRoster" {
		action = "was removed from"
	}
	if err := p.post(ctx, fmt.Sprintf("%s %s %s the roster for the session on %s",
		f.FirstName, f.LastName, action, f.SessionDate.Format(displayDateLayout))); err != nil {
		return err
	}
	return p.handler.SendRosterEmails(ctx, eventType, f, msg.NotificationEmails)
}

func (p *CommsProcessor) processTeamAssignmentChange(ctx context.Context, msg *models.CommsMessage) error {
	f, err := extractTeamAssignmentChange(msg)
	if err != nil {
		return err
	}
	if err := p.post(ctx, fmt.Sprintf("%s %s moved from %s to %s for the session on %s",
		f.FirstName, f.LastName, f.FormerTeamAssignment, f.NewTeamAssignment,
		f.SessionDate.Format(displayDateLayout))); err != nil {
		return err
	}
	return p.handler.SendTeamAssignmentChangeEmail(ctx, f, msg.NotificationEmails)
}

func (p *CommsProcessor) processQueuePosition(ctx context.Context, msg *models.CommsMessage) error {
	eventType := msg.Type()
	side := "Buyer"
	action := "joined the buy queue"
	switch eventType {
	case "AddedToSellQueue":
		side, action = "Seller", "listed their spot for sale"
	case "CancelledBuyQueuePosition":
		action = "left the buy queue"
	case "CancelledSellQueuePosition":
		side, action = "Seller", "removed their spot from the sell queue"
	}

	f, err := extractQueuePosition(msg, eventType, side)
	if err != nil {
		return err
	}
	if err := p.post(ctx, fmt.Sprintf("%s %s %s for the session on %s",
		f.FirstName, f.LastName, action, f.SessionDate.Format(displayDateLayout))); err != nil {
		return err
	}
	return p.handler.SendQueuePositionEmails(ctx, eventType, f, msg.NotificationEmails)
}

func (p *CommsProcessor) processSpotTrade(ctx context.Context, msg *models.CommsMessage) error {
	eventType := msg.Type()
	f, err := extractSpotTrade(msg, eventType)
	if err != nil {
		return err
	}
	if err := p.post(ctx, fmt.Sprintf("%s %s bought a spot from %s %s for the session on %s",
		f.BuyerFirstName, f.BuyerLastName, f.SellerFirstName, f.SellerLastName,
		f.SessionDate.Format(displayDateLayout))); err != nil {
		return err
	}
	return p.handler.SendSpotTradeEmails(ctx, eventType, f, msg.NotificationEmails)
}

// processUnknown is the fallback for tags with no dedicated handler yet: the
// whole envelope is rendered to a readable block and posted to the chat
// channel. This is a success outcome, so new event types surface immediately
// without an email template.
func (p *CommsProcessor) processUnknown(ctx context.Context, msg *models.CommsMessage) error {
	p.logger.Warn("no handler for event type, posting raw event to chat",
		slog.String("event_id", msg.EventID()),
		slog.String("type", msg.Type()))
	return p.post(ctx, formatUnknownEvent(msg))
}

func formatUnknownEvent(msg *models.CommsMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Unhandled comms event %q\n", msg.Type())
	writeBag(&b, "CommunicationMethod", msg.CommunicationMethod)
	writeBag(&b, "RelatedEntities", msg.RelatedEntities)
	writeBag(&b, "MessageData", msg.MessageData)
	if len(msg.NotificationEmails) > 0 {
		fmt.Fprintf(&b, "NotificationEmails: %s\n", strings.Join(msg.NotificationEmails, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeBag(b *strings.Builder, name string, bag map[string]string) {
	if len(bag) == 0 {
		return
	}
	keys := make([]string, 0, len(bag))
	for k := range bag {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(b, "%s:\n", name)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s: %s\n", k, bag[k])
	}
}
