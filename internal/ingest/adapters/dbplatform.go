package adapters

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/remedian/remedian/internal/database"
	"github.com/remedian/remedian/internal/ingest"
)

// DBPlatformAdapter handles resource and incident webhooks from the
// managed database platform
type DBPlatformAdapter struct{}

// NewDBPlatformAdapter creates a new database platform adapter
func NewDBPlatformAdapter() *DBPlatformAdapter {
	return &DBPlatformAdapter{}
}

// dbPlatformPayload is the database platform webhook shape
type dbPlatformPayload struct {
	ID           string `json:"id"`
	Event        string `json:"event"`
	ProjectRef   string `json:"project_ref"`
	Message      string `json:"message"`
	Environment  string `json:"environment"`
	DashboardURL string `json:"dashboard_url"`
}

// dbPlatformSeverityByEvent is the deterministic severity table for
// database platform events
var dbPlatformSeverityByEvent = map[string]database.AlertSeverity{
	"db.storage.full":          database.AlertSeverityCritical,
	"db.connections.exhausted": database.AlertSeverityCritical,
	"db.cpu.high":              database.AlertSeverityWarning,
	"db.memory.high":           database.AlertSeverityWarning,
	"db.backup.failed":         database.AlertSeverityWarning,
	"db.slow_queries":          database.AlertSeverityInfo,
	"db.maintenance.scheduled": database.AlertSeverityInfo,
}

// Source returns the source this adapter handles
func (a *DBPlatformAdapter) Source() database.AlertSource {
	return database.AlertSourceDatabasePlatform
}

// DeliveryID extracts the database platform delivery identifier
func (a *DBPlatformAdapter) DeliveryID(headers http.Header, body []byte) string {
	if id := headers.Get("X-Delivery-Id"); id != "" {
		return id
	}
	var payload dbPlatformPayload
	if err := json.Unmarshal(body, &payload); err == nil {
		return payload.ID
	}
	return ""
}

// Parse converts a database platform webhook body into a canonical draft
func (a *DBPlatformAdapter) Parse(body []byte) (ingest.Draft, error) {
	var payload dbPlatformPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ingest.Draft{}, fmt.Errorf("failed to parse database platform payload: %w", err)
	}

	severity, ok := dbPlatformSeverityByEvent[payload.Event]
	if !ok {
		return ingest.UnknownDraft(database.AlertSourceDatabasePlatform), nil
	}

	title := fmt.Sprintf("Database %s on %s", payload.Event, payload.ProjectRef)
	summary := payload.Message
	if summary == "" {
		summary = title
	}

	return ingest.Draft{
		Type:        payload.Event,
		Severity:    severity,
		Title:       title,
		Summary:     summary,
		ExternalURL: payload.DashboardURL,
		Repository:  payload.ProjectRef,
		Environment: payload.Environment,
	}, nil
}
