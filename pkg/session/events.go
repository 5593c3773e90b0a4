package session

import "soltabs/pkg/models"

// EventType defines the type of event being broadcast.
type EventType string

const (
	EventTabAdded       EventType = "tab_added"
	EventTabClosed      EventType = "tab_closed"
	EventActiveChanged  EventType = "active_changed"
	EventPriceUpdated   EventType = "price_updated"
	EventSessionCleared EventType = "session_cleared"
)

// Event is a change to the session. Record is a snapshot taken when the event
// was emitted.
type Event struct {
	Type    EventType           `json:"type"`
	Address string              `json:"address,omitempty"`
	Record  *models.TokenRecord `json:"record,omitempty"`
	Tabs    []string            `json:"tabs"`
}

// Subscriber is a channel that receives events.
type Subscriber chan Event
