package amqp

import (
	"encoding/json"
	"time"
)

// Event types published on the entries exchange.
const (
	EntryCreated = "entry.created"
	EntryDeleted = "entry.deleted"
)

// EntryEvent announces a change to a license's entry list. It carries only
// identifiers; consumers read amounts from the store.
type EntryEvent struct {
	Type      string    `json:"type"`
	License   string    `json:"license"`
	ID        int64     `json:"id"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntryEvent creates an event stamped with the current time.
func NewEntryEvent(eventType, license string, id int64, date string) *EntryEvent {
	return &EntryEvent{
		Type:      eventType,
		License:   license,
		ID:        id,
		Date:      date,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *EntryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryEventFromJSON decodes an event body.
func EntryEventFromJSON(data []byte) (*EntryEvent, error) {
	var msg EntryEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
