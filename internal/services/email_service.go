package services

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// EmailTemplate identifies one of the bundled email bodies. Broadcast
// variants carry the "Notification" suffix and are addressed to bystanders
// rather than the event's direct recipient.
type EmailTemplate string

const (
	TemplateRawContent                      EmailTemplate = "RawContent"
	TemplateSignedIn                        EmailTemplate = "SignedIn"
	TemplateRegisterConfirmation            EmailTemplate = "RegisterConfirmation"
	TemplateForgotPassword                  EmailTemplate = "ForgotPassword"
	TemplateCreateSession                   EmailTemplate = "CreateSession"
	TemplateAddedToRoster                   EmailTemplate = "AddedToRoster"
	TemplateAddedToRosterAlert              EmailTemplate = "AddedToRosterNotification"
	TemplateDeletedFromRoster               EmailTemplate = "DeletedFromRoster"
	TemplateDeletedFromRosterAlert          EmailTemplate = "DeletedFromRosterNotification"
	TemplateTeamAssignmentChange            EmailTemplate = "TeamAssignmentChange"
	TemplateTeamAssignmentChangeAlert       EmailTemplate = "TeamAssignmentChangeNotification"
	TemplateAddedToBuyQueue                 EmailTemplate = "AddedToBuyQueue"
	TemplateAddedToBuyQueueAlert            EmailTemplate = "AddedToBuyQueueNotification"
	TemplateAddedToSellQueue                EmailTemplate = "AddedToSellQueue"
	TemplateAddedToSellQueueAlert           EmailTemplate = "AddedToSellQueueNotification"
	TemplateCancelledBuyQueuePosition       EmailTemplate = "CancelledBuyQueuePosition"
	TemplateCancelledBuyQueuePositionAlert  EmailTemplate = "CancelledBuyQueuePositionNotification"
	TemplateCancelledSellQueuePosition      EmailTemplate = "CancelledSellQueuePosition"
	TemplateCancelledSellQueuePositionAlert EmailTemplate = "CancelledSellQueuePositionNotification"
	TemplateBoughtSpotFromSeller            EmailTemplate = "BoughtSpotFromSeller"
	TemplateBoughtSpotFromSellerAlert       EmailTemplate = "BoughtSpotFromSellerNotification"
	TemplateSoldSpotToBuyer                 EmailTemplate = "SoldSpotToBuyer"
	TemplateSoldSpotToBuyerAlert            EmailTemplate = "SoldSpotToBuyerNotification"
)

type templateConfig struct {
	file           string
	requiredTokens []string
}

var sessionTokens = []string{"EMAIL", "SESSIONDATE", "SESSION_URL", "FIRSTNAME", "LASTNAME"}

var tradeTokens = []string{"EMAIL", "SESSIONDATE", "SESSION_URL", "BUYERFIRSTNAME", "BUYERLASTNAME", "SELLERFIRSTNAME", "SELLERLASTNAME"}

var templateConfigs = map[EmailTemplate]templateConfig{
	TemplateRawContent:           {"raw_content.txt", []string{"RAWCONTENT"}},
	TemplateSignedIn:             {"signed_in.txt", []string{"EMAIL"}},
	TemplateRegisterConfirmation: {"register_confirmation.txt", []string{"EMAIL", "FIRSTNAME", "LASTNAME", "CONFIRMATION_URL"}},
	TemplateForgotPassword:       {"forgot_password.txt", []string{"EMAIL", "FIRSTNAME", "LASTNAME", "RESET_URL"}},
	TemplateCreateSession:        {"create_session.txt", []string{"EMAIL", "SESSIONDATE", "SESSION_URL", "NOTE", "CREATEDBYNAME"}},

	TemplateAddedToRoster:             {"added_to_roster.txt", sessionTokens},
	TemplateAddedToRosterAlert:        {"added_to_roster_notification.txt", sessionTokens},
	TemplateDeletedFromRoster:         {"deleted_from_roster.txt", sessionTokens},
	TemplateDeletedFromRosterAlert:    {"deleted_from_roster_notification.txt", sessionTokens},
	TemplateTeamAssignmentChange:      {"team_assignment_change.txt", []string{"EMAIL", "SESSIONDATE", "SESSION_URL", "FIRSTNAME", "LASTNAME", "FORMERTEAMASSIGNMENT", "NEWTEAMASSIGNMENT"}},
	TemplateTeamAssignmentChangeAlert: {"team_assignment_change_notification.txt", []string{"EMAIL", "SESSIONDATE", "SESSION_URL", "FIRSTNAME", "LASTNAME", "FORMERTEAMASSIGNMENT", "NEWTEAMASSIGNMENT"}},

	TemplateAddedToBuyQueue:                 {"added_to_buy_queue.txt", sessionTokens},
	TemplateAddedToBuyQueueAlert:            {"added_to_buy_queue_notification.txt", sessionTokens},
	TemplateAddedToSellQueue:                {"added_to_sell_queue.txt", sessionTokens},
	TemplateAddedToSellQueueAlert:           {"added_to_sell_queue_notification.txt", sessionTokens},
	TemplateCancelledBuyQueuePosition:       {"cancelled_buy_queue_position.txt", sessionTokens},
	TemplateCancelledBuyQueuePositionAlert:  {"cancelled_buy_queue_position_notification.txt", sessionTokens},
	TemplateCancelledSellQueuePosition:      {"cancelled_sell_queue_position.txt", sessionTokens},
	TemplateCancelledSellQueuePositionAlert: {"cancelled_sell_queue_position_notification.txt", sessionTokens},

	TemplateBoughtSpotFromSeller:      {"bought_spot_from_seller.txt", tradeTokens},
	TemplateBoughtSpotFromSellerAlert: {"bought_spot_from_seller_notification.txt", tradeTokens},
	TemplateSoldSpotToBuyer:           {"sold_spot_to_buyer.txt", tradeTokens},
	TemplateSoldSpotToBuyerAlert:      {"sold_spot_to_buyer_notification.txt", tradeTokens},
}

//go:embed email_templates/*.txt
var templateFS embed.FS

// EmailMessage is the fully rendered payload handed to a provider.
type EmailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// EmailProvider represents a downstream email transport (SendGrid, SMTP, etc).
type EmailProvider interface {
	Name() string
	Send(ctx context.Context, msg *EmailMessage) error
}

// EmailSender is the templated-message collaborator the comms handler fans
// out through. EmailService is the production implementation.
type EmailSender interface {
	Send(ctx context.Context, to, subject string, template EmailTemplate, tokens map[string]string) error
}

// EmailService validates token maps against per-template contracts, renders
// the bundled template and hands the result to the provider. Token validation
// happens before any network call so a bad composition never reaches the wire.
type EmailService struct {
	provider EmailProvider
	logger   *slog.Logger
}

func NewEmailService(provider EmailProvider, logger *slog.Logger) *EmailService {
	return &EmailService{
		provider: provider,
		logger:   logger,
	}
}

func (s *EmailService) Send(ctx context.Context, to, subject string, template EmailTemplate, tokens map[string]string) error {
	cfg, ok := templateConfigs[template]
	if !ok {
		return fmt.Errorf("%w: template not configured: %s", ErrConfig, template)
	}

	var missing []string
	for _, key := range cfg.requiredTokens {
		if _, ok := tokens[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: template %s missing required tokens: %s", ErrValidation, template, strings.Join(missing, ", "))
	}

	raw, err := templateFS.ReadFile("email_templates/" + cfg.file)
	if err != nil {
		return fmt.Errorf("%w: template resource %s: %v", ErrConfig, cfg.file, err)
	}

	body := renderTokens(string(raw), tokens)

	msg := &EmailMessage{
		To:      to,
		Subject: subject,
		Text:    body,
		HTML:    strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "<br />"), "\n", "<br />"),
	}

	if err := s.provider.Send(ctx, msg); err != nil {
		s.logger.Error("email send failed",
			slog.String("provider", s.provider.Name()),
			slog.String("recipient", to),
			slog.String("template", string(template)),
			slog.Any("error", err))
		return err
	}

	s.logger.Info("email sent",
		slog.String("recipient", to),
		slog.String("template", string(template)))
	return nil
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// renderTokens performs moustache-style replacement for {{KEY}} placeholders.
// Unknown placeholders are left untouched so a template typo stays visible.
func renderTokens(template string, tokens map[string]string) string {
	if template == "" || len(tokens) == 0 {
		return template
	}
	return tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		sub := tokenPattern.FindStringSubmatch(match)
		if len(sub) != 2 {
			return match
		}
		if value, ok := tokens[sub[1]]; ok {
			return value
		}
		return match
	})
}
