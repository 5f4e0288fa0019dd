// Package handlers contains the HTTP handlers: webhook ingestion, the
// management API, authentication and health.
package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/remedian/remedian/internal/api"
	"github.com/remedian/remedian/internal/broadcast"
	"github.com/remedian/remedian/internal/database"
	"github.com/remedian/remedian/internal/ingest"
	"github.com/remedian/remedian/internal/ratelimit"
	"github.com/remedian/remedian/internal/secrets"
)

// Enqueuer schedules an alert for asynchronous processing
type Enqueuer interface {
	Enqueue(alertUUID string) bool
}

// WebhookHandler is the ingestion gateway. It acknowledges deliveries
// after persistence; analysis and remediation happen asynchronously.
type WebhookHandler struct {
	db        *gorm.DB
	registry  *ingest.Registry
	box       *secrets.Box
	limiter   *ratelimit.KeyedLimiter
	queue     Enqueuer
	publisher broadcast.Publisher
	maxBytes  int64
}

// NewWebhookHandler creates the ingestion gateway
func NewWebhookHandler(db *gorm.DB, registry *ingest.Registry, box *secrets.Box, limiter *ratelimit.KeyedLimiter, queue Enqueuer, publisher broadcast.Publisher, maxBytes int64) *WebhookHandler {
	if publisher == nil {
		publisher = broadcast.NopPublisher{}
	}
	return &WebhookHandler{
		db:        db,
		registry:  registry,
		box:       box,
		limiter:   limiter,
		queue:     queue,
		publisher: publisher,
		maxBytes:  maxBytes,
	}
}

// SetupRoutes configures the webhook routes
func (h *WebhookHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook/{source}", h.HandleWebhook)
}

// HandleWebhook handles POST /webhook/{source}
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	sourceName := r.PathValue("source")
	if !database.IsValidAlertSource(sourceName) {
		api.RespondError(w, http.StatusNotFound, "Unknown webhook source")
		return
	}
	source := database.AlertSource(sourceName)

	adapter, ok := h.registry.Get(source)
	if !ok {
		api.RespondError(w, http.StatusNotFound, "Unknown webhook source")
		return
	}

	cfg, err := database.GetWebhookConfig(h.db, source)
	if err != nil {
		log.Printf("WebhookHandler: failed to load config for %s: %v", source, err)
		api.RespondError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if !cfg.Enabled {
		api.RespondError(w, http.StatusForbidden, "Webhook source is disabled")
		return
	}

	if !h.limiter.Allow(string(source)) {
		api.RespondError(w, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.RespondError(w, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}

	if !h.verifySignature(cfg, body, r.Header.Get(ingest.SignatureHeader)) {
		// No detail: the caller learns nothing about why verification failed
		api.RespondError(w, http.StatusUnauthorized, "Signature verification failed")
		return
	}

	// Dedup before parsing: a replayed delivery is acknowledged without
	// creating anything
	deliveryID := adapter.DeliveryID(r.Header, body)
	if deliveryID != "" {
		existing, err := database.FindAlertByDelivery(h.db, source, deliveryID)
		if err == nil {
			h.handleDuplicate(w, existing, deliveryID)
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("WebhookHandler: dedup lookup failed: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Internal error")
			return
		}
	}

	draft, err := adapter.Parse(body)
	if err != nil {
		// Not JSON at all; keep the delivery as a degraded unknown alert
		log.Printf("WebhookHandler: unparseable %s payload: %v", source, err)
		draft = ingest.UnknownDraft(source)
	}

	if !cfg.BranchAllowed(draft.Branch) {
		if err := database.AppendSystemLog(h.db, "alert.filtered",
			"Delivery filtered by branch rules",
			database.JSONB{"source": string(source), "branch": draft.Branch}); err != nil {
			log.Printf("WebhookHandler: failed to log filtered delivery: %v", err)
		}
		api.RespondJSON(w, http.StatusOK, map[string]string{"status": "filtered"})
		return
	}

	alert := &database.Alert{
		Source:      source,
		Type:        draft.Type,
		Severity:    draft.Severity,
		Title:       draft.Title,
		Summary:     draft.Summary,
		ExternalURL: draft.ExternalURL,
		Payload:     ingest.DecodePayload(body),
		Repository:  draft.Repository,
		Branch:      draft.Branch,
		Commit:      draft.Commit,
		Environment: draft.Environment,
	}
	if deliveryID != "" {
		alert.DeliveryID = &deliveryID
	}

	existing, err := h.persistAlert(alert, source, deliveryID)
	if err != nil {
		log.Printf("WebhookHandler: failed to persist %s alert: %v", source, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to persist alert")
		return
	}
	if existing != nil {
		h.handleDuplicate(w, existing, deliveryID)
		return
	}

	if err := database.AppendAlertLog(h.db, alert.ID, database.ActivityActorSystem,
		"alert.received", "Webhook delivery accepted",
		database.JSONB{"source": string(source), "type": alert.Type, "delivery_id": deliveryID}); err != nil {
		log.Printf("WebhookHandler: failed to log alert receipt: %v", err)
	}

	h.publisher.Publish(broadcast.Event{
		Type:      broadcast.EventAlertCreated,
		AlertUUID: alert.UUID,
		Payload: map[string]interface{}{
			"source":   string(alert.Source),
			"severity": string(alert.Severity),
			"title":    alert.Title,
		},
	})

	// Acknowledge now; a full queue is recovered by the reconciler
	h.queue.Enqueue(alert.UUID)

	api.RespondJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"uuid":   alert.UUID,
	})
}

// persistAlert creates the alert row. Two concurrent requests carrying
// the same delivery ID can both miss the dedup lookup; the loser of the
// insert race gets the winner's row back instead of an error.
func (h *WebhookHandler) persistAlert(alert *database.Alert, source database.AlertSource, deliveryID string) (*database.Alert, error) {
	if err := database.CreateAlert(h.db, alert); err != nil {
		if deliveryID != "" {
			if existing, lookupErr := database.FindAlertByDelivery(h.db, source, deliveryID); lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return nil, nil
}

// verifySignature checks the delivery's HMAC against the source's
// decrypted secret. A source without a secret rejects everything.
func (h *WebhookHandler) verifySignature(cfg *database.WebhookConfig, body []byte, header string) bool {
	if cfg.Secret == "" {
		return false
	}
	secret, err := h.box.Decrypt(cfg.Secret)
	if err != nil {
		log.Printf("WebhookHandler: failed to decrypt webhook secret for %s: %v", cfg.Source, err)
		return false
	}
	return ingest.VerifySignature(secret, body, header)
}

// handleDuplicate acknowledges a replayed delivery without re-running
// the pipeline
func (h *WebhookHandler) handleDuplicate(w http.ResponseWriter, existing *database.Alert, deliveryID string) {
	if err := database.TouchDuplicate(h.db, existing); err != nil {
		log.Printf("WebhookHandler: failed to touch duplicate alert %s: %v", existing.UUID, err)
	}
	if err := database.AppendAlertLog(h.db, existing.ID, database.ActivityActorSystem,
		"alert.duplicate", "Duplicate delivery received",
		database.JSONB{"delivery_id": deliveryID}); err != nil {
		log.Printf("WebhookHandler: failed to log duplicate delivery: %v", err)
	}
	api.RespondJSON(w, http.StatusOK, map[string]string{
		"status": "duplicate",
		"uuid":   existing.UUID,
	})
}
