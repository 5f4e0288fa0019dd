package handlers

import (
	"errors"
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/remedian/remedian/internal/api"
	"github.com/remedian/remedian/internal/database"
	"github.com/remedian/remedian/internal/middleware"
	"github.com/remedian/remedian/internal/secrets"
)

// Reprocessor re-runs the pipeline for one alert
type Reprocessor interface {
	Enqueue(alertUUID string) bool
}

// APIHandler serves the management API for the dashboard
type APIHandler struct {
	db    *gorm.DB
	box   *secrets.Box
	queue Reprocessor
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(db *gorm.DB, box *secrets.Box, queue Reprocessor) *APIHandler {
	return &APIHandler{db: db, box: box, queue: queue}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Alerts
	mux.HandleFunc("GET /api/alerts", h.handleListAlerts)
	mux.HandleFunc("GET /api/alerts/{uuid}", h.handleGetAlert)
	mux.HandleFunc("GET /api/alerts/{uuid}/logs", h.handleGetAlertLogs)
	mux.HandleFunc("POST /api/alerts/{uuid}/reprocess", h.handleReprocessAlert)
	mux.HandleFunc("POST /api/alerts/{uuid}/ignore", h.handleIgnoreAlert)

	// Activity feed
	mux.HandleFunc("GET /api/activity", h.handleRecentActivity)

	// Webhook source configuration
	mux.HandleFunc("GET /api/webhooks", h.handleListWebhooks)
	mux.HandleFunc("PUT /api/webhooks/{source}", h.handleUpdateWebhook)

	// Notification configuration
	mux.HandleFunc("GET /api/settings/notifications", h.handleGetNotifications)
	mux.HandleFunc("PUT /api/settings/notifications", h.handleUpdateNotifications)
}

// handleListAlerts handles GET /api/alerts with optional source, status
// and severity filters
func (h *APIHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.AlertFilter{
		Source:   database.AlertSource(q.Get("source")),
		Status:   database.AlertStatus(q.Get("status")),
		Severity: database.AlertSeverity(q.Get("severity")),
	}

	p := api.ParsePagination(r)
	alerts, total, err := database.ListAlerts(h.db, filter, p.PerPage, p.Offset())
	if err != nil {
		log.Printf("APIHandler: failed to list alerts: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts":      alerts,
		"total":       total,
		"page":        p.Page,
		"per_page":    p.PerPage,
		"total_pages": p.TotalPages(total),
	})
}

// handleGetAlert handles GET /api/alerts/{uuid}
func (h *APIHandler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}
	api.RespondJSON(w, http.StatusOK, alert)
}

// handleGetAlertLogs handles GET /api/alerts/{uuid}/logs
func (h *APIHandler) handleGetAlertLogs(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}

	logs, err := database.ListLogsForAlert(h.db, alert.ID)
	if err != nil {
		log.Printf("APIHandler: failed to list logs for alert %s: %v", alert.UUID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list activity logs")
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}

// handleReprocessAlert handles POST /api/alerts/{uuid}/reprocess.
// Operators use this to replay analysis after updating rules or to
// retry a failed auto-fix.
func (h *APIHandler) handleReprocessAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}

	// Processing without analysis means a worker is actively on it; with
	// analysis attached the alert is parked awaiting a human and may be
	// replayed.
	if alert.Status == database.AlertStatusProcessing && !alert.Analysis.Present() {
		api.RespondError(w, http.StatusConflict, "Alert is already being processed")
		return
	}
	if alert.Status != database.AlertStatusPending {
		if err := database.MarkStatus(h.db, alert.UUID, database.AlertStatusPending); err != nil {
			log.Printf("APIHandler: failed to reset alert %s: %v", alert.UUID, err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to reset alert")
			return
		}
	}

	if err := database.AppendAlertLog(h.db, alert.ID, database.ActivityActorUser,
		"alert.reprocess", "Reprocessing requested",
		database.JSONB{"user": middleware.GetUserFromContext(r.Context())}); err != nil {
		log.Printf("APIHandler: failed to log reprocess request: %v", err)
	}

	if !h.queue.Enqueue(alert.UUID) {
		api.RespondError(w, http.StatusServiceUnavailable, "Processing queue is full, try again later")
		return
	}
	api.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// handleIgnoreAlert handles POST /api/alerts/{uuid}/ignore
func (h *APIHandler) handleIgnoreAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.loadAlert(w, r)
	if !ok {
		return
	}

	if alert.Status == database.AlertStatusResolved {
		api.RespondError(w, http.StatusConflict, "Alert is already resolved")
		return
	}
	if err := database.MarkStatus(h.db, alert.UUID, database.AlertStatusIgnored); err != nil {
		log.Printf("APIHandler: failed to ignore alert %s: %v", alert.UUID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to update alert")
		return
	}
	if err := database.AppendAlertLog(h.db, alert.ID, database.ActivityActorUser,
		"alert.ignored", "Alert marked as ignored",
		database.JSONB{"user": middleware.GetUserFromContext(r.Context())}); err != nil {
		log.Printf("APIHandler: failed to log ignore: %v", err)
	}
	api.RespondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
}

// handleRecentActivity handles GET /api/activity
func (h *APIHandler) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	p := api.ParsePagination(r)
	logs, err := database.ListRecentLogs(h.db, p.PerPage)
	if err != nil {
		log.Printf("APIHandler: failed to list recent activity: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list activity")
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}

// handleListWebhooks handles GET /api/webhooks. Secrets are never
// returned, only whether one is set.
func (h *APIHandler) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	configs, err := database.ListWebhookConfigs(h.db)
	if err != nil {
		log.Printf("APIHandler: failed to list webhook configs: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list webhook configs")
		return
	}

	type webhookView struct {
		database.WebhookConfig
		SecretSet bool `json:"secret_set"`
	}
	views := make([]webhookView, 0, len(configs))
	for _, cfg := range configs {
		views = append(views, webhookView{WebhookConfig: cfg, SecretSet: cfg.Secret != ""})
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{"webhooks": views})
}

// UpdateWebhookRequest is the body for PUT /api/webhooks/{source}
type UpdateWebhookRequest struct {
	Name    string          `json:"name"`
	Enabled *bool           `json:"enabled"`
	Secret  *string         `json:"secret"`
	Rules   *database.JSONB `json:"rules"`
}

// handleUpdateWebhook handles PUT /api/webhooks/{source}
func (h *APIHandler) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	sourceName := r.PathValue("source")
	if !database.IsValidAlertSource(sourceName) {
		api.RespondError(w, http.StatusNotFound, "Unknown webhook source")
		return
	}

	var req UpdateWebhookRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := database.GetWebhookConfig(h.db, database.AlertSource(sourceName))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Webhook config not found")
			return
		}
		log.Printf("APIHandler: failed to load webhook config: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to load webhook config")
		return
	}

	if req.Name != "" {
		cfg.Name = req.Name
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.Rules != nil {
		cfg.Rules = *req.Rules
	}
	if req.Secret != nil {
		encrypted, err := h.box.Encrypt(*req.Secret)
		if err != nil {
			log.Printf("APIHandler: failed to encrypt webhook secret: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to store secret")
			return
		}
		cfg.Secret = encrypted
	}

	if err := database.SaveWebhookConfig(h.db, cfg); err != nil {
		log.Printf("APIHandler: failed to save webhook config: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to save webhook config")
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleGetNotifications handles GET /api/settings/notifications
func (h *APIHandler) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	cfg, err := database.GetNotificationConfig(h.db)
	if err != nil {
		log.Printf("APIHandler: failed to load notification config: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to load notification config")
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"on_critical":     cfg.OnCritical,
		"on_autofix":      cfg.OnAutofix,
		"on_all":          cfg.OnAll,
		"webhook_url_set": cfg.WebhookURL != "",
	})
}

// UpdateNotificationsRequest is the body for PUT /api/settings/notifications
type UpdateNotificationsRequest struct {
	WebhookURL *string `json:"webhook_url"`
	OnCritical *bool   `json:"on_critical"`
	OnAutofix  *bool   `json:"on_autofix"`
	OnAll      *bool   `json:"on_all"`
}

// handleUpdateNotifications handles PUT /api/settings/notifications
func (h *APIHandler) handleUpdateNotifications(w http.ResponseWriter, r *http.Request) {
	var req UpdateNotificationsRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := database.GetNotificationConfig(h.db)
	if err != nil {
		log.Printf("APIHandler: failed to load notification config: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to load notification config")
		return
	}

	if req.WebhookURL != nil {
		encrypted, err := h.box.Encrypt(*req.WebhookURL)
		if err != nil {
			log.Printf("APIHandler: failed to encrypt notification URL: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to store webhook URL")
			return
		}
		cfg.WebhookURL = encrypted
	}
	if req.OnCritical != nil {
		cfg.OnCritical = *req.OnCritical
	}
	if req.OnAutofix != nil {
		cfg.OnAutofix = *req.OnAutofix
	}
	if req.OnAll != nil {
		cfg.OnAll = *req.OnAll
	}

	if err := database.UpdateNotificationConfig(h.db, cfg); err != nil {
		log.Printf("APIHandler: failed to save notification config: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to save notification config")
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// loadAlert fetches the alert named by the {uuid} path value, writing
// the error response itself when the alert cannot be served
func (h *APIHandler) loadAlert(w http.ResponseWriter, r *http.Request) (*database.Alert, bool) {
	alert, err := database.GetAlertByUUID(h.db, r.PathValue("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Alert not found")
		} else {
			log.Printf("APIHandler: failed to load alert: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to load alert")
		}
		return nil, false
	}
	return alert, true
}
