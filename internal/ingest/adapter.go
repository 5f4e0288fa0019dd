package ingest

import (
	"encoding/json"
	"net/http"

	"github.com/remedian/remedian/internal/database"
)

// Draft is the canonical alert produced by a source adapter before
// persistence. Metadata fields are optional; their absence never blocks
// the pipeline.
type Draft struct {
	Type        string
	Severity    database.AlertSeverity
	Title       string
	Summary     string
	ExternalURL string

	Repository  string
	Branch      string
	Commit      string
	Environment string
}

// SourceAdapter converts one upstream source's native payloads into
// canonical drafts. Parse is a pure function; adapters hold no state.
type SourceAdapter interface {
	// Source returns the source this adapter handles
	Source() database.AlertSource

	// DeliveryID extracts the upstream delivery identifier used for
	// deduplication. Empty means the source provides none.
	DeliveryID(headers http.Header, body []byte) string

	// Parse converts the raw request body into a draft. Adapters must
	// degrade unknown event types to type="unknown" severity=info
	// rather than fail; an error is returned only for bodies that are
	// not valid JSON at all.
	Parse(body []byte) (Draft, error)
}

// UnknownDraft is the degraded fallback for unrecognized payloads. The
// pipeline continues with a low-priority, unanalyzed alert instead of
// dropping the webhook.
func UnknownDraft(source database.AlertSource) Draft {
	return Draft{
		Type:     "unknown",
		Severity: database.AlertSeverityInfo,
		Title:    string(source) + " event",
		Summary:  "Unrecognized event payload",
	}
}

// DecodePayload unmarshals a webhook body into a generic map for
// storage. Non-JSON bodies are preserved verbatim under "raw" so the
// original bytes remain available for audit.
func DecodePayload(body []byte) database.JSONB {
	payload := database.JSONB{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return database.JSONB{"raw": string(body)}
	}
	return payload
}
