package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/slack-go/slack"

	"github.com/remedian/remedian/internal/database"
	"github.com/remedian/remedian/internal/risk"
	"github.com/remedian/remedian/internal/secrets"
)

func newTestNotifier(t *testing.T, post WebhookPoster) (*Notifier, *secrets.Box) {
	t.Helper()
	key, err := secrets.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	box, err := secrets.NewBox(key)
	if err != nil {
		t.Fatalf("failed to create box: %v", err)
	}
	n := New(box)
	n.post = post
	return n, box
}

func encryptURL(t *testing.T, box *secrets.Box, url string) string {
	t.Helper()
	encrypted, err := box.Encrypt(url)
	if err != nil {
		t.Fatalf("failed to encrypt URL: %v", err)
	}
	return encrypted
}

func TestShouldNotify_TriggerRules(t *testing.T) {
	critical := &database.Alert{Severity: database.AlertSeverityCritical}
	warning := &database.Alert{Severity: database.AlertSeverityWarning}
	fixed := &database.Alert{
		Severity:   database.AlertSeverityWarning,
		Resolution: database.AlertResolution{Type: database.ResolutionTypeAutoFix},
	}

	tests := []struct {
		name  string
		cfg   *database.NotificationConfig
		alert *database.Alert
		want  bool
	}{
		{"nil config", nil, critical, false},
		{"no URL", &database.NotificationConfig{OnAll: true}, critical, false},
		{"onCritical matches critical", &database.NotificationConfig{WebhookURL: "x", OnCritical: true}, critical, true},
		{"onCritical ignores warning", &database.NotificationConfig{WebhookURL: "x", OnCritical: true}, warning, false},
		{"onAutofix matches resolved", &database.NotificationConfig{WebhookURL: "x", OnAutofix: true}, fixed, true},
		{"onAutofix ignores unresolved", &database.NotificationConfig{WebhookURL: "x", OnAutofix: true}, warning, false},
		{"onAll matches everything", &database.NotificationConfig{WebhookURL: "x", OnAll: true}, warning, true},
		{"all rules off", &database.NotificationConfig{WebhookURL: "x"}, critical, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldNotify(tt.cfg, tt.alert); got != tt.want {
				t.Errorf("ShouldNotify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSend_DeliversFormattedMessage(t *testing.T) {
	var gotURL string
	var gotMsg *slack.WebhookMessage
	n, box := newTestNotifier(t, func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
		gotURL = url
		gotMsg = msg
		return nil
	})

	alert := &database.Alert{
		UUID:     "a1",
		Source:   database.AlertSourceCI,
		Type:     "workflow.failure",
		Severity: database.AlertSeverityCritical,
		Title:    "Build failed",
		Summary:  "Workflow CI failed on main",
		Resolution: database.AlertResolution{
			Type:    database.ResolutionTypeAutoFix,
			Action:  database.AutoFixActionRetryWorkflow,
			Details: "Re-ran workflow",
			PRURL:   "https://git.example.com/pull/1",
		},
	}
	cfg := &database.NotificationConfig{
		WebhookURL: encryptURL(t, box, "https://hooks.example.com/T1/B1"),
		OnCritical: true,
	}

	err := n.Send(context.Background(), alert, risk.Assessment{
		Level:          risk.LevelHigh,
		Recommendation: database.RecommendationManualReview,
	}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotURL != "https://hooks.example.com/T1/B1" {
		t.Errorf("expected decrypted URL, got '%s'", gotURL)
	}
	for _, fragment := range []string{"Build failed", "high", "manual_review", "Re-ran workflow", "https://git.example.com/pull/1"} {
		if !strings.Contains(gotMsg.Text, fragment) {
			t.Errorf("expected message to contain %q, got:\n%s", fragment, gotMsg.Text)
		}
	}
}

func TestSend_SkipsWhenRulesDontFire(t *testing.T) {
	called := false
	n, box := newTestNotifier(t, func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
		called = true
		return nil
	})

	alert := &database.Alert{Severity: database.AlertSeverityWarning}
	cfg := &database.NotificationConfig{
		WebhookURL: encryptURL(t, box, "https://hooks.example.com/T1/B1"),
		OnCritical: true,
	}

	if err := n.Send(context.Background(), alert, risk.Assessment{}, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("poster must not be called when trigger rules don't fire")
	}
}

func TestSend_DeliveryFailureIsReturned(t *testing.T) {
	n, box := newTestNotifier(t, func(ctx context.Context, url string, msg *slack.WebhookMessage) error {
		return errors.New("channel gone")
	})

	alert := &database.Alert{Severity: database.AlertSeverityCritical}
	cfg := &database.NotificationConfig{
		WebhookURL: encryptURL(t, box, "https://hooks.example.com/T1/B1"),
		OnCritical: true,
	}

	if err := n.Send(context.Background(), alert, risk.Assessment{}, cfg); err == nil {
		t.Error("expected delivery error to surface for logging")
	}
}
