// Package analyzer infers a likely root cause for canonical alerts by
// matching them against static per-source pattern tables.
package analyzer

import (
	"strings"
	"time"

	"github.com/remedian/remedian/internal/database"
)

// Rule is one pattern in a source's knowledge base. A rule matches when
// the alert's type equals Type (empty Type matches any) and every
// Contains fragment appears in the alert's type, title or summary.
type Rule struct {
	Type         string                 `yaml:"type"`
	Contains     []string               `yaml:"contains"`
	RootCause    string                 `yaml:"root_cause"`
	SuggestedFix string                 `yaml:"suggested_fix"`
	AutoFixable  bool                   `yaml:"auto_fixable"`
	Action       database.AutoFixAction `yaml:"action"`
	Confidence   float64                `yaml:"confidence"`
}

// Analyzer matches alerts against per-source pattern tables. It is
// stateless and side-effect-free: re-running it for the same alert
// always yields the same analysis.
type Analyzer struct {
	rules map[database.AlertSource][]Rule
}

// New creates an analyzer with the built-in pattern tables
func New() *Analyzer {
	return &Analyzer{rules: defaultRules()}
}

// Analyze infers root cause, suggested fix and confidence for an alert.
// A failed match yields autoFixable=false with confidence below the
// manual-review threshold; it is never an error.
func (a *Analyzer) Analyze(alert *database.Alert) database.AlertAnalysis {
	now := time.Now()
	text := strings.ToLower(alert.Type + " " + alert.Title + " " + alert.Summary)

	// Exact type matches first; they carry the highest confidence
	for _, rule := range a.rules[alert.Source] {
		if rule.Type == "" || rule.Type != alert.Type {
			continue
		}
		if containsAll(text, rule.Contains) {
			return analysisFromRule(rule, now)
		}
	}

	// Heuristic rules match on free text alone and score lower
	for _, rule := range a.rules[alert.Source] {
		if rule.Type != "" || len(rule.Contains) == 0 {
			continue
		}
		if containsAll(text, rule.Contains) {
			return analysisFromRule(rule, now)
		}
	}

	return database.AlertAnalysis{
		RootCause:    "No known pattern matched",
		SuggestedFix: "Manual investigation required",
		AutoFixable:  false,
		Confidence:   0.3,
		AnalyzedAt:   &now,
	}
}

func analysisFromRule(rule Rule, now time.Time) database.AlertAnalysis {
	return database.AlertAnalysis{
		RootCause:     rule.RootCause,
		SuggestedFix:  rule.SuggestedFix,
		AutoFixable:   rule.AutoFixable,
		AutoFixAction: rule.Action,
		Confidence:    rule.Confidence,
		AnalyzedAt:    &now,
	}
}

func containsAll(text string, fragments []string) bool {
	for _, f := range fragments {
		if !strings.Contains(text, strings.ToLower(f)) {
			return false
		}
	}
	return true
}

// defaultRules is the built-in knowledge base. Rules are evaluated in
// order; more specific rules precede generic ones.
func defaultRules() map[database.AlertSource][]Rule {
	return map[database.AlertSource][]Rule{
		database.AlertSourceCI: {
			{
				Type:         "workflow.failure",
				Contains:     []string{"lint"},
				RootCause:    "Lint violations failed the workflow",
				SuggestedFix: "Apply automated lint fixes and open a pull request",
				AutoFixable:  true,
				Action:       database.AutoFixActionLintFix,
				Confidence:   0.85,
			},
			{
				Type:         "workflow.failure",
				Contains:     []string{"type error"},
				RootCause:    "Type errors failed the workflow",
				SuggestedFix: "Apply automated lint fixes and open a pull request",
				AutoFixable:  true,
				Action:       database.AutoFixActionLintFix,
				Confidence:   0.85,
			},
			{
				Type:         "workflow.failure",
				RootCause:    "CI workflow failed, likely a build or test failure",
				SuggestedFix: "Re-run the failed workflow",
				AutoFixable:  true,
				Action:       database.AutoFixActionRetryWorkflow,
				Confidence:   0.8,
			},
			{
				Type:         "workflow.timeout",
				RootCause:    "Workflow exceeded its time limit",
				SuggestedFix: "Re-run the workflow; investigate if timeouts recur",
				AutoFixable:  true,
				Action:       database.AutoFixActionRetryWorkflow,
				Confidence:   0.8,
			},
			{
				Type:         "workflow.cancelled",
				RootCause:    "Workflow was cancelled before completion",
				SuggestedFix: "Re-run manually if the cancellation was accidental",
				AutoFixable:  false,
				Confidence:   0.6,
			},
		},
		database.AlertSourceDeployment: {
			{
				Type:         "deployment.error",
				RootCause:    "Deployment failed to build or promote",
				SuggestedFix: "Trigger a fresh deployment",
				AutoFixable:  true,
				Action:       database.AutoFixActionRedeploy,
				Confidence:   0.85,
			},
			{
				Type:         "deployment.canceled",
				RootCause:    "Deployment was cancelled",
				SuggestedFix: "Redeploy manually if needed",
				AutoFixable:  false,
				Confidence:   0.6,
			},
		},
		database.AlertSourceErrorTracker: {
			{
				Type:         "issue.error",
				Contains:     []string{"typeerror"},
				RootCause:    "Runtime type error, likely lint-detectable",
				SuggestedFix: "Apply automated lint fixes and open a pull request",
				AutoFixable:  true,
				Action:       database.AutoFixActionLintFix,
				Confidence:   0.8,
			},
			{
				Type:         "issue.fatal",
				Contains:     []string{"out of memory"},
				RootCause:    "Process exhausted available memory",
				SuggestedFix: "Increase memory limits or fix the leak",
				AutoFixable:  false,
				Confidence:   0.8,
			},
			{
				Contains:     []string{"timeout"},
				RootCause:    "An upstream dependency is timing out",
				SuggestedFix: "Check the upstream service's health and latency",
				AutoFixable:  false,
				Confidence:   0.6,
			},
		},
		database.AlertSourceDatabasePlatform: {
			{
				Type:         "db.storage.full",
				RootCause:    "Database storage is nearly exhausted",
				SuggestedFix: "Expand storage or archive old data",
				AutoFixable:  false,
				Confidence:   0.85,
			},
			{
				Type:         "db.connections.exhausted",
				RootCause:    "Connection pool exhausted",
				SuggestedFix: "Scale the pool or find the connection leak",
				AutoFixable:  false,
				Confidence:   0.8,
			},
			{
				Type:         "db.backup.failed",
				RootCause:    "Scheduled backup did not complete",
				SuggestedFix: "Re-run the backup and check storage credentials",
				AutoFixable:  false,
				Confidence:   0.75,
			},
			{
				Contains:     []string{"cpu"},
				RootCause:    "Sustained high CPU on the database instance",
				SuggestedFix: "Inspect slow queries; consider scaling up",
				AutoFixable:  false,
				Confidence:   0.6,
			},
		},
	}
}
