package adapters

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/remedian/remedian/internal/database"
	"github.com/remedian/remedian/internal/ingest"
)

// ErrorTrackerAdapter handles issue-alert webhooks from the error
// tracking service
type ErrorTrackerAdapter struct{}

// NewErrorTrackerAdapter creates a new error tracker adapter
func NewErrorTrackerAdapter() *ErrorTrackerAdapter {
	return &ErrorTrackerAdapter{}
}

// errorTrackerPayload is the issue-alert webhook shape
type errorTrackerPayload struct {
	ID      string `json:"id"`
	Project string `json:"project"`
	Level   string `json:"level"`
	Message string `json:"message"`
	Culprit string `json:"culprit"`
	URL     string `json:"url"`
	Event   struct {
		Environment string `json:"environment"`
		Release     string `json:"release"`
	} `json:"event"`
}

// errorTrackerSeverityByLevel is the deterministic severity table for
// issue levels
var errorTrackerSeverityByLevel = map[string]database.AlertSeverity{
	"fatal":   database.AlertSeverityCritical,
	"error":   database.AlertSeverityWarning,
	"warning": database.AlertSeverityWarning,
	"info":    database.AlertSeverityInfo,
	"debug":   database.AlertSeverityInfo,
}

// Source returns the source this adapter handles
func (a *ErrorTrackerAdapter) Source() database.AlertSource {
	return database.AlertSourceErrorTracker
}

// DeliveryID extracts the error tracker delivery identifier
func (a *ErrorTrackerAdapter) DeliveryID(headers http.Header, body []byte) string {
	if id := headers.Get("X-Sentry-Delivery"); id != "" {
		return id
	}
	var payload errorTrackerPayload
	if err := json.Unmarshal(body, &payload); err == nil {
		return payload.ID
	}
	return ""
}

// Parse converts an error tracker webhook body into a canonical draft
func (a *ErrorTrackerAdapter) Parse(body []byte) (ingest.Draft, error) {
	var payload errorTrackerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ingest.Draft{}, fmt.Errorf("failed to parse error tracker payload: %w", err)
	}

	severity, ok := errorTrackerSeverityByLevel[payload.Level]
	if !ok || payload.Message == "" {
		return ingest.UnknownDraft(database.AlertSourceErrorTracker), nil
	}

	summary := payload.Message
	if payload.Culprit != "" {
		summary = fmt.Sprintf("%s (in %s)", payload.Message, payload.Culprit)
	}

	return ingest.Draft{
		Type:        "issue." + payload.Level,
		Severity:    severity,
		Title:       payload.Message,
		Summary:     summary,
		ExternalURL: payload.URL,
		Repository:  payload.Project,
		Environment: payload.Event.Environment,
	}, nil
}
