package domain

import (
	"encoding/json"
	"time"
)

// OutboxEntry is one domain event frozen for at-least-once delivery.
// Entries are appended in the same transaction as the aggregate
// snapshot and drained in insertion order by the dispatcher; the event
// id is the deduplication key for consumers.
type OutboxEntry struct {
	EventID      string
	TenantID     string
	AuctionID    string
	EventType    EventType
	Payload      []byte
	OccurredAt   time.Time
	DispatchedAt *time.Time
}

func NewOutboxEntry(e Event) (*OutboxEntry, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return &OutboxEntry{
		EventID:    e.EventID(),
		TenantID:   e.EventTenant(),
		AuctionID:  e.EventAuction(),
		EventType:  e.EventType(),
		Payload:    payload,
		OccurredAt: e.EventTime(),
	}, nil
}

// NewOutboxEntries freezes a command's event batch, preserving order.
func NewOutboxEntries(events []Event) ([]*OutboxEntry, error) {
	entries := make([]*OutboxEntry, 0, len(events))
	for _, e := range events {
		entry, err := NewOutboxEntry(e)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
