package analyzer

import (
	"testing"

	"github.com/remedian/remedian/internal/database"
)

func TestAnalyze_KnownPatterns(t *testing.T) {
	a := New()

	tests := []struct {
		name           string
		alert          database.Alert
		wantAction     database.AutoFixAction
		wantFixable    bool
		wantConfidence float64
	}{
		{
			name: "ci workflow failure retries",
			alert: database.Alert{
				Source: database.AlertSourceCI,
				Type:   "workflow.failure",
				Title:  `Workflow "CI" failure`,
			},
			wantAction:     database.AutoFixActionRetryWorkflow,
			wantFixable:    true,
			wantConfidence: 0.8,
		},
		{
			name: "ci lint failure gets lint fix",
			alert: database.Alert{
				Source:  database.AlertSourceCI,
				Type:    "workflow.failure",
				Title:   `Workflow "Lint" failure`,
				Summary: "Workflow Lint on acme/shop finished with conclusion failure",
			},
			wantAction:     database.AutoFixActionLintFix,
			wantFixable:    true,
			wantConfidence: 0.85,
		},
		{
			name: "deployment error redeploys",
			alert: database.Alert{
				Source: database.AlertSourceDeployment,
				Type:   "deployment.error",
				Title:  "Deployment error: shop",
			},
			wantAction:     database.AutoFixActionRedeploy,
			wantFixable:    true,
			wantConfidence: 0.85,
		},
		{
			name: "oom fatal is known but not fixable",
			alert: database.Alert{
				Source:  database.AlertSourceErrorTracker,
				Type:    "issue.fatal",
				Title:   "Out of memory",
				Summary: "Process killed: out of memory",
			},
			wantFixable:    false,
			wantConfidence: 0.8,
		},
		{
			name: "storage full is known but not fixable",
			alert: database.Alert{
				Source: database.AlertSourceDatabasePlatform,
				Type:   "db.storage.full",
				Title:  "Database db.storage.full on prj_1",
			},
			wantFixable:    false,
			wantConfidence: 0.85,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := a.Analyze(&tt.alert)
			if !analysis.Present() {
				t.Fatal("expected analysis to be stamped")
			}
			if analysis.AutoFixable != tt.wantFixable {
				t.Errorf("expected autoFixable=%v, got %v", tt.wantFixable, analysis.AutoFixable)
			}
			if analysis.AutoFixAction != tt.wantAction {
				t.Errorf("expected action '%s', got '%s'", tt.wantAction, analysis.AutoFixAction)
			}
			if analysis.Confidence != tt.wantConfidence {
				t.Errorf("expected confidence %v, got %v", tt.wantConfidence, analysis.Confidence)
			}
		})
	}
}

func TestAnalyze_UnmatchedFallsBack(t *testing.T) {
	a := New()

	alert := database.Alert{
		Source: database.AlertSourceErrorTracker,
		Type:   "issue.fatal",
		Title:  "Unhandled exception in checkout",
	}
	analysis := a.Analyze(&alert)

	if analysis.Confidence != 0.3 {
		t.Errorf("expected fallback confidence 0.3, got %v", analysis.Confidence)
	}
	if analysis.AutoFixable {
		t.Error("fallback analysis must not be auto-fixable")
	}
	if analysis.RootCause != "No known pattern matched" {
		t.Errorf("unexpected root cause '%s'", analysis.RootCause)
	}
}

func TestAnalyze_HeuristicRules(t *testing.T) {
	a := New()

	alert := database.Alert{
		Source:  database.AlertSourceErrorTracker,
		Type:    "issue.warning",
		Title:   "Upstream timeout",
		Summary: "Request to payments timed out after 30s (timeout)",
	}
	analysis := a.Analyze(&alert)

	if analysis.Confidence != 0.6 {
		t.Errorf("expected heuristic confidence 0.6, got %v", analysis.Confidence)
	}
	if analysis.AutoFixable {
		t.Error("timeout heuristic must not be auto-fixable")
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	a := New()
	alert := database.Alert{
		Source: database.AlertSourceCI,
		Type:   "workflow.failure",
		Title:  `Workflow "CI" failure`,
	}

	first := a.Analyze(&alert)
	second := a.Analyze(&alert)
	if first.RootCause != second.RootCause ||
		first.Confidence != second.Confidence ||
		first.AutoFixAction != second.AutoFixAction {
		t.Error("analysis must be deterministic for the same alert")
	}
}
