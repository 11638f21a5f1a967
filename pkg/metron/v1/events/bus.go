package events

import "time"

// EventType represents the type of a Metron runtime event.
type EventType string

// Standard Metron Event Types
const (
	ProviderInstalled     EventType = "ProviderInstalled"     // A provider took the active slot
	ProviderInstallFailed EventType = "ProviderInstallFailed" // Install aborted before the swap
	ProviderShutdown      EventType = "ProviderShutdown"      // Active provider released the slot
	MetricsDisabled       EventType = "MetricsDisabled"       // Slot cleared, errors suppressed
	SnapshotWritten       EventType = "SnapshotWritten"       // Textfile snapshot persisted
	SnapshotFailed        EventType = "SnapshotFailed"        // Textfile snapshot aborted
	CollectorRegistered   EventType = "CollectorRegistered"   // A snapshot collector was added
	SecretAccessed        EventType = "SecretAccessed"        // A secret value was expanded into config
)

// Event represents a significant occurrence within the Metron runtime.
type Event struct {
	// Type categorizes the event.
	Type EventType `json:"type"`
	// Timestamp marks when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// Provider identifies the provider kind ("prometheus", "otlp"), if applicable.
	Provider string `json:"provider,omitempty"`
	// Stage identifies the snapshot stage, if applicable.
	Stage string `json:"stage,omitempty"`
	// Payload contains event-specific data. Sensitive information (like secret values)
	// MUST NOT be included in the payload. Secret keys accessed might be included
	// if necessary for auditing (e.g., in SecretAccessed event).
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Bus defines the interface for publishing events within the Metron runtime.
// Implementations could include logging, sending to message queues, etc.
type Bus interface {
	// Emit publishes an event to the bus.
	// Implementations should be non-blocking or handle blocking carefully
	// to avoid slowing down install and shutdown paths.
	// Sensitive information (like secret values) MUST NOT be included in the event payload.
	Emit(event Event)
}
