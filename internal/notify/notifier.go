// Package notify delivers alert summaries to the configured messaging
// channel. Delivery is a side channel: failures are logged and never
// affect the alert's persisted state.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/remedian/remedian/internal/database"
	"github.com/remedian/remedian/internal/risk"
	"github.com/remedian/remedian/internal/secrets"
)

// WebhookPoster sends a message to an incoming-webhook URL. Satisfied
// by slack.PostWebhookContext; swapped out in tests.
type WebhookPoster func(ctx context.Context, url string, msg *slack.WebhookMessage) error

// Notifier formats and delivers alert summaries
type Notifier struct {
	box  *secrets.Box
	post WebhookPoster
}

// New creates a notifier that decrypts the stored delivery URL with box
func New(box *secrets.Box) *Notifier {
	return &Notifier{
		box:  box,
		post: slack.PostWebhookContext,
	}
}

// ShouldNotify applies the configured trigger rules
func ShouldNotify(cfg *database.NotificationConfig, alert *database.Alert) bool {
	if cfg == nil || cfg.WebhookURL == "" {
		return false
	}
	if cfg.OnAll {
		return true
	}
	if cfg.OnCritical && alert.Severity == database.AlertSeverityCritical {
		return true
	}
	if cfg.OnAutofix && alert.Resolution.Present() {
		return true
	}
	return false
}

// Send delivers a summary for the alert if the trigger rules fire.
// Errors are returned for logging only; callers must never roll back
// alert state on a delivery failure.
func (n *Notifier) Send(ctx context.Context, alert *database.Alert, assessment risk.Assessment, cfg *database.NotificationConfig) error {
	if !ShouldNotify(cfg, alert) {
		return nil
	}

	url, err := n.box.Decrypt(cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("failed to decrypt notification webhook URL: %w", err)
	}
	if url == "" {
		return nil
	}

	msg := &slack.WebhookMessage{Text: formatMessage(alert, assessment)}
	if err := n.post(ctx, url, msg); err != nil {
		return fmt.Errorf("notification delivery failed: %w", err)
	}

	log.Printf("Notification sent for alert %s", alert.UUID)
	return nil
}

// formatMessage builds the channel summary
func formatMessage(alert *database.Alert, assessment risk.Assessment) string {
	msg := fmt.Sprintf(`%s *%s*

:label: *Source:* %s (%s)
:warning: *Severity:* %s
:vertical_traffic_light: *Risk:* %s (%s)
:memo: *Summary:* %s`,
		severityEmoji(alert.Severity),
		alert.Title,
		alert.Source,
		alert.Type,
		alert.Severity,
		assessment.Level,
		assessment.Recommendation,
		alert.Summary,
	)

	if alert.Resolution.Present() {
		msg += fmt.Sprintf("\n:white_check_mark: *Auto-fixed:* %s", alert.Resolution.Details)
		if alert.Resolution.PRURL != "" {
			msg += fmt.Sprintf("\n:link: *PR:* %s", alert.Resolution.PRURL)
		}
	}

	if alert.ExternalURL != "" {
		msg += fmt.Sprintf("\n:mag: *Details:* %s", alert.ExternalURL)
	}

	return msg
}

// severityEmoji returns an emoji for the alert severity
func severityEmoji(severity database.AlertSeverity) string {
	switch severity {
	case database.AlertSeverityCritical:
		return ":red_circle:"
	case database.AlertSeverityWarning:
		return ":large_yellow_circle:"
	case database.AlertSeverityInfo:
		return ":large_blue_circle:"
	default:
		return ":white_circle:"
	}
}
