package adapters

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/remedian/remedian/internal/database"
	"github.com/remedian/remedian/internal/ingest"
)

// CIAdapter handles webhooks from the CI provider (workflow run events)
type CIAdapter struct{}

// NewCIAdapter creates a new CI adapter
func NewCIAdapter() *CIAdapter {
	return &CIAdapter{}
}

// ciPayload is the workflow-run webhook shape
type ciPayload struct {
	Action      string `json:"action"`
	WorkflowRun struct {
		ID         int64  `json:"id"`
		Name       string `json:"name"`
		Event      string `json:"event"`
		Conclusion string `json:"conclusion"`
		HTMLURL    string `json:"html_url"`
		HeadBranch string `json:"head_branch"`
		HeadSHA    string `json:"head_sha"`
	} `json:"workflow_run"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	// Environment is attached by deploy-triggered workflows; optional
	Environment string `json:"environment"`
}

// ciSeverityByConclusion is the deterministic severity table for
// workflow conclusions
var ciSeverityByConclusion = map[string]struct {
	eventType string
	severity  database.AlertSeverity
}{
	"failure":   {"workflow.failure", database.AlertSeverityWarning},
	"timed_out": {"workflow.timeout", database.AlertSeverityWarning},
	"cancelled": {"workflow.cancelled", database.AlertSeverityInfo},
	"success":   {"workflow.success", database.AlertSeverityInfo},
}

// Source returns the source this adapter handles
func (a *CIAdapter) Source() database.AlertSource {
	return database.AlertSourceCI
}

// DeliveryID extracts the CI delivery identifier
func (a *CIAdapter) DeliveryID(headers http.Header, body []byte) string {
	if id := headers.Get("X-GitHub-Delivery"); id != "" {
		return id
	}
	var payload ciPayload
	if err := json.Unmarshal(body, &payload); err == nil && payload.WorkflowRun.ID != 0 {
		return fmt.Sprintf("run-%d", payload.WorkflowRun.ID)
	}
	return ""
}

// Parse converts a CI webhook body into a canonical draft
func (a *CIAdapter) Parse(body []byte) (ingest.Draft, error) {
	var payload ciPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ingest.Draft{}, fmt.Errorf("failed to parse ci payload: %w", err)
	}

	entry, ok := ciSeverityByConclusion[payload.WorkflowRun.Conclusion]
	if !ok || payload.WorkflowRun.Name == "" {
		// New or unanticipated event shape: degrade, never drop
		return ingest.UnknownDraft(database.AlertSourceCI), nil
	}

	title := fmt.Sprintf("Workflow %q %s", payload.WorkflowRun.Name, payload.WorkflowRun.Conclusion)
	summary := fmt.Sprintf("Workflow %s on %s (%s) finished with conclusion %s",
		payload.WorkflowRun.Name, payload.Repository.FullName,
		payload.WorkflowRun.HeadBranch, payload.WorkflowRun.Conclusion)

	return ingest.Draft{
		Type:        entry.eventType,
		Severity:    entry.severity,
		Title:       title,
		Summary:     summary,
		ExternalURL: payload.WorkflowRun.HTMLURL,
		Repository:  payload.Repository.FullName,
		Branch:      payload.WorkflowRun.HeadBranch,
		Commit:      payload.WorkflowRun.HeadSHA,
		Environment: payload.Environment,
	}, nil
}
