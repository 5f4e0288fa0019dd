// Package risk gates automatic remediation. The assessment is derived
// deterministically from an alert and its analysis; it is recomputable
// and never persisted as a source of truth.
package risk

import "github.com/remedian/remedian/internal/database"

// Level classifies how risky automatic remediation would be
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Assessment is the transient result of a risk evaluation
type Assessment struct {
	Level          Level                   `json:"level"`
	Recommendation database.Recommendation `json:"recommendation"`
	ShouldAutoFix  bool                    `json:"should_auto_fix"`
}

// Assessor evaluates the remediation policy. Thresholds are policy
// constants, configurable rather than hard rules.
type Assessor struct {
	// LowConfidence is the floor below which analysis is inconclusive
	LowConfidence float64
	// HighConfidence is the bar for trusting an auto-fix inference
	HighConfidence float64

	lowImpact map[database.AutoFixAction]bool
}

// New creates an assessor with the default policy thresholds
func New() *Assessor {
	return NewWithThresholds(0.5, 0.8)
}

// NewWithThresholds creates an assessor with custom confidence bounds
func NewWithThresholds(low, high float64) *Assessor {
	return &Assessor{
		LowConfidence:  low,
		HighConfidence: high,
		lowImpact: map[database.AutoFixAction]bool{
			database.AutoFixActionLintFix:       true,
			database.AutoFixActionRetryWorkflow: true,
			database.AutoFixActionRedeploy:      true,
		},
	}
}

// Assess applies the decision policy in precedence order.
// Invariant: ShouldAutoFix is true only when Level is low and the
// analysis is auto-fixable; it can never be true at high level.
func (a *Assessor) Assess(alert *database.Alert, analysis database.AlertAnalysis) Assessment {
	level := a.level(alert, analysis)

	var recommendation database.Recommendation
	shouldAutoFix := false

	switch level {
	case LevelLow:
		if analysis.AutoFixable {
			recommendation = database.RecommendationAutoApprove
			shouldAutoFix = true
		} else {
			recommendation = database.RecommendationPRWithReview
		}
	case LevelMedium:
		// A human gate is required even when a fix is known
		if analysis.AutoFixable {
			recommendation = database.RecommendationPRWithReview
		} else {
			recommendation = database.RecommendationPRWithRequiredReview
		}
	default:
		recommendation = database.RecommendationManualReview
	}

	return Assessment{
		Level:          level,
		Recommendation: recommendation,
		ShouldAutoFix:  shouldAutoFix,
	}
}

// level applies the tiering rules in strict precedence order
func (a *Assessor) level(alert *database.Alert, analysis database.AlertAnalysis) Level {
	if alert.Severity == database.AlertSeverityCritical {
		return LevelHigh
	}
	if alert.Environment == "production" {
		return LevelHigh
	}
	if analysis.Confidence < a.LowConfidence {
		return LevelHigh
	}
	if alert.Severity == database.AlertSeverityInfo {
		return LevelLow
	}
	if analysis.Confidence >= a.HighConfidence && analysis.AutoFixable && a.lowImpact[analysis.AutoFixAction] {
		return LevelLow
	}
	return LevelMedium
}
