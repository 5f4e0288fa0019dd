// Package broadcast fans pipeline events out to connected dashboard
// clients over WebSocket. Delivery is best-effort: slow or dead clients
// are dropped rather than allowed to stall the pipeline.
package broadcast

// Event is one pipeline lifecycle notification
type Event struct {
	Type      string      `json:"type"`
	AlertUUID string      `json:"alert_uuid"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Event types published by the pipeline
const (
	EventAlertCreated   = "alert.created"
	EventAlertProcessed = "alert.processed"
	EventAlertResolved  = "alert.resolved"
)

// Publisher delivers events to subscribers
type Publisher interface {
	Publish(event Event)
}

// NopPublisher discards all events
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
