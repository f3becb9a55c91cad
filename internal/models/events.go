package models

import "time"

// Event types
const (
	EventTypeProductCreated = "PRODUCT_CREATED"
	EventTypeProductUpdated = "PRODUCT_UPDATED"
	EventTypeProductDeleted = "PRODUCT_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductChangedEvent is published after an admin mutation of the catalog
type ProductChangedEvent struct {
	BaseEvent
	ProductID string `json:"product_id"`
	Category  string `json:"category,omitempty"`
	Featured  bool   `json:"featured"`
	// Source is "database" when the remote store accepted the write,
	// "fallback" when only the local collection was changed.
	Source string `json:"source"`
}

// EventSourceFallback marks a change that only reached the local collection
const EventSourceFallback = "fallback"

// ChangedRemotely reports whether the remote store holds the change
func (e *ProductChangedEvent) ChangedRemotely() bool {
	return e.Source != EventSourceFallback
}
