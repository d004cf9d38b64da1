package models

import (
	"encoding/json"
	"time"
)

// CartRecord is how a shopping cart body is stored.
type CartRecord struct {
	Items     interface{} `bson:"items"`
	CreatedAt time.Time   `bson:"createdAt"`
}

// Event names published after writes.
const (
	EventDocumentCreated = "document.created"
	EventDocumentUpdated = "document.updated"
	EventCartCreated     = "cart.created"
)

// DocumentEvent is published after every successful write.
type DocumentEvent struct {
	Event      string      `json:"event"`
	Collection string      `json:"collection"`
	KeyField   string      `json:"key_field,omitempty"`
	Key        interface{} `json:"key,omitempty"`
	Created    bool        `json:"created"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// NewUpsertEvent builds the event for an upsert through b.
func NewUpsertEvent(b Binding, key interface{}, created bool, at time.Time) DocumentEvent {
	name := EventDocumentUpdated
	if created {
		name = EventDocumentCreated
	}
	return DocumentEvent{
		Event:      name,
		Collection: b.Collection,
		KeyField:   b.KeyField,
		Key:        b.LogKey(key),
		Created:    created,
		OccurredAt: at.UTC(),
	}
}

// NewCartEvent builds the event for a cart insert.
func NewCartEvent(at time.Time) DocumentEvent {
	return DocumentEvent{
		Event:      EventCartCreated,
		Collection: ShoppingCartCollection,
		Created:    true,
		OccurredAt: at.UTC(),
	}
}

// IngestMessage is the envelope read from the ingest queue.
type IngestMessage struct {
	Route   string          `json:"route"`
	Payload json.RawMessage `json:"payload"`
}
