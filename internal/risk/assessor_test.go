package risk

import (
	"testing"

	"github.com/remedian/remedian/internal/database"
)

func TestAssess_TieringPrecedence(t *testing.T) {
	a := New()

	tests := []struct {
		name     string
		alert    database.Alert
		analysis database.AlertAnalysis
		want     Level
	}{
		{
			name:     "critical severity is always high",
			alert:    database.Alert{Severity: database.AlertSeverityCritical},
			analysis: database.AlertAnalysis{Confidence: 0.99, AutoFixable: true, AutoFixAction: database.AutoFixActionLintFix},
			want:     LevelHigh,
		},
		{
			name:     "production environment is always high",
			alert:    database.Alert{Severity: database.AlertSeverityWarning, Environment: "production"},
			analysis: database.AlertAnalysis{Confidence: 0.9, AutoFixable: true, AutoFixAction: database.AutoFixActionRetryWorkflow},
			want:     LevelHigh,
		},
		{
			name:     "inconclusive analysis is high",
			alert:    database.Alert{Severity: database.AlertSeverityWarning},
			analysis: database.AlertAnalysis{Confidence: 0.3},
			want:     LevelHigh,
		},
		{
			name:     "info severity is low",
			alert:    database.Alert{Severity: database.AlertSeverityInfo},
			analysis: database.AlertAnalysis{Confidence: 0.6},
			want:     LevelLow,
		},
		{
			name:     "confident low-impact fix is low",
			alert:    database.Alert{Severity: database.AlertSeverityWarning, Environment: "staging"},
			analysis: database.AlertAnalysis{Confidence: 0.85, AutoFixable: true, AutoFixAction: database.AutoFixActionRedeploy},
			want:     LevelLow,
		},
		{
			name:     "everything else is medium",
			alert:    database.Alert{Severity: database.AlertSeverityWarning},
			analysis: database.AlertAnalysis{Confidence: 0.7, AutoFixable: true, AutoFixAction: database.AutoFixActionRetryWorkflow},
			want:     LevelMedium,
		},
		{
			name:     "confident but not fixable is medium",
			alert:    database.Alert{Severity: database.AlertSeverityWarning},
			analysis: database.AlertAnalysis{Confidence: 0.85},
			want:     LevelMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Assess(&tt.alert, tt.analysis)
			if got.Level != tt.want {
				t.Errorf("expected level '%s', got '%s'", tt.want, got.Level)
			}
		})
	}
}

func TestAssess_Recommendations(t *testing.T) {
	a := New()

	tests := []struct {
		name     string
		alert    database.Alert
		analysis database.AlertAnalysis
		want     database.Recommendation
		wantAuto bool
	}{
		{
			name:     "low and fixable auto-approves",
			alert:    database.Alert{Severity: database.AlertSeverityWarning, Environment: "staging"},
			analysis: database.AlertAnalysis{Confidence: 0.85, AutoFixable: true, AutoFixAction: database.AutoFixActionRedeploy},
			want:     database.RecommendationAutoApprove,
			wantAuto: true,
		},
		{
			name:     "low but not fixable wants review",
			alert:    database.Alert{Severity: database.AlertSeverityInfo},
			analysis: database.AlertAnalysis{Confidence: 0.6},
			want:     database.RecommendationPRWithReview,
		},
		{
			name:     "medium fixable wants review",
			alert:    database.Alert{Severity: database.AlertSeverityWarning},
			analysis: database.AlertAnalysis{Confidence: 0.7, AutoFixable: true, AutoFixAction: database.AutoFixActionRetryWorkflow},
			want:     database.RecommendationPRWithReview,
		},
		{
			name:     "medium not fixable wants required review",
			alert:    database.Alert{Severity: database.AlertSeverityWarning},
			analysis: database.AlertAnalysis{Confidence: 0.85},
			want:     database.RecommendationPRWithRequiredReview,
		},
		{
			name:     "high is manual review",
			alert:    database.Alert{Severity: database.AlertSeverityCritical},
			analysis: database.AlertAnalysis{Confidence: 0.9, AutoFixable: true, AutoFixAction: database.AutoFixActionLintFix},
			want:     database.RecommendationManualReview,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Assess(&tt.alert, tt.analysis)
			if got.Recommendation != tt.want {
				t.Errorf("expected recommendation '%s', got '%s'", tt.want, got.Recommendation)
			}
			if got.ShouldAutoFix != tt.wantAuto {
				t.Errorf("expected shouldAutoFix=%v, got %v", tt.wantAuto, got.ShouldAutoFix)
			}
		})
	}
}

// Auto-fix must never fire at high risk, whatever the combination of
// inputs. Sweep the whole input space rather than cherry-picked cases.
func TestAssess_NeverAutoFixAtHigh(t *testing.T) {
	a := New()

	severities := []database.AlertSeverity{
		database.AlertSeverityCritical,
		database.AlertSeverityWarning,
		database.AlertSeverityInfo,
	}
	environments := []string{"", "production", "staging", "preview"}
	confidences := []float64{0.0, 0.3, 0.5, 0.79, 0.8, 0.95, 1.0}
	actions := []database.AutoFixAction{
		"",
		database.AutoFixActionRetryWorkflow,
		database.AutoFixActionRedeploy,
		database.AutoFixActionLintFix,
	}

	for _, severity := range severities {
		for _, env := range environments {
			for _, confidence := range confidences {
				for _, fixable := range []bool{true, false} {
					for _, action := range actions {
						alert := database.Alert{Severity: severity, Environment: env}
						analysis := database.AlertAnalysis{
							Confidence:    confidence,
							AutoFixable:   fixable,
							AutoFixAction: action,
						}
						got := a.Assess(&alert, analysis)

						if got.Level == LevelHigh && got.ShouldAutoFix {
							t.Fatalf("shouldAutoFix=true at high level: severity=%s env=%q confidence=%v fixable=%v action=%s",
								severity, env, confidence, fixable, action)
						}
						if got.ShouldAutoFix && (got.Level != LevelLow || !fixable) {
							t.Fatalf("shouldAutoFix outside low+fixable: level=%s fixable=%v", got.Level, fixable)
						}
						if got.Level == LevelHigh && got.Recommendation != database.RecommendationManualReview {
							t.Fatalf("high level must recommend manual review, got %s", got.Recommendation)
						}
					}
				}
			}
		}
	}
}

func TestNewWithThresholds(t *testing.T) {
	a := NewWithThresholds(0.2, 0.9)

	alert := database.Alert{Severity: database.AlertSeverityWarning}

	// 0.3 clears the custom low bar
	got := a.Assess(&alert, database.AlertAnalysis{Confidence: 0.3})
	if got.Level == LevelHigh {
		t.Errorf("0.3 should clear a 0.2 low threshold, got %s", got.Level)
	}

	// 0.85 no longer clears the custom high bar
	got = a.Assess(&alert, database.AlertAnalysis{
		Confidence: 0.85, AutoFixable: true, AutoFixAction: database.AutoFixActionLintFix,
	})
	if got.Level != LevelMedium {
		t.Errorf("0.85 should not clear a 0.9 high threshold, got %s", got.Level)
	}
}
