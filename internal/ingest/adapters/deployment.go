package adapters

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/remedian/remedian/internal/database"
	"github.com/remedian/remedian/internal/ingest"
)

// DeploymentAdapter handles webhooks from the deployment platform
type DeploymentAdapter struct{}

// NewDeploymentAdapter creates a new deployment adapter
func NewDeploymentAdapter() *DeploymentAdapter {
	return &DeploymentAdapter{}
}

// deploymentPayload is the deployment platform webhook shape
type deploymentPayload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Payload struct {
		Target     string `json:"target"` // production, staging, preview
		Deployment struct {
			URL  string `json:"url"`
			Name string `json:"name"`
			Meta struct {
				CommitRef string `json:"githubCommitRef"`
				CommitSHA string `json:"githubCommitSha"`
				Org       string `json:"githubOrg"`
				Repo      string `json:"githubRepo"`
			} `json:"meta"`
		} `json:"deployment"`
		Links struct {
			Deployment string `json:"deployment"`
		} `json:"links"`
	} `json:"payload"`
}

// deploymentSeverityByType is the deterministic severity table for
// deployment event types
var deploymentSeverityByType = map[string]database.AlertSeverity{
	"deployment.error":     database.AlertSeverityWarning,
	"deployment.canceled":  database.AlertSeverityInfo,
	"deployment.created":   database.AlertSeverityInfo,
	"deployment.succeeded": database.AlertSeverityInfo,
}

// Source returns the source this adapter handles
func (a *DeploymentAdapter) Source() database.AlertSource {
	return database.AlertSourceDeployment
}

// DeliveryID extracts the deployment delivery identifier
func (a *DeploymentAdapter) DeliveryID(headers http.Header, body []byte) string {
	if id := headers.Get("X-Vercel-Id"); id != "" {
		return id
	}
	var payload deploymentPayload
	if err := json.Unmarshal(body, &payload); err == nil {
		return payload.ID
	}
	return ""
}

// Parse converts a deployment webhook body into a canonical draft
func (a *DeploymentAdapter) Parse(body []byte) (ingest.Draft, error) {
	var payload deploymentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ingest.Draft{}, fmt.Errorf("failed to parse deployment payload: %w", err)
	}

	severity, ok := deploymentSeverityByType[payload.Type]
	if !ok {
		return ingest.UnknownDraft(database.AlertSourceDeployment), nil
	}

	deployment := payload.Payload.Deployment
	repository := ""
	if deployment.Meta.Org != "" && deployment.Meta.Repo != "" {
		repository = deployment.Meta.Org + "/" + deployment.Meta.Repo
	}

	name := deployment.Name
	if name == "" {
		name = repository
	}
	title := fmt.Sprintf("Deployment %s: %s", payload.Type[len("deployment."):], name)
	summary := fmt.Sprintf("Deployment event %s for %s (target: %s)",
		payload.Type, name, payload.Payload.Target)

	externalURL := payload.Payload.Links.Deployment
	if externalURL == "" && deployment.URL != "" {
		externalURL = "https://" + deployment.URL
	}

	return ingest.Draft{
		Type:        payload.Type,
		Severity:    severity,
		Title:       title,
		Summary:     summary,
		ExternalURL: externalURL,
		Repository:  repository,
		Branch:      deployment.Meta.CommitRef,
		Commit:      deployment.Meta.CommitSHA,
		Environment: payload.Payload.Target,
	}, nil
}
