package domain

import "time"

type ChangeType string

const (
	ChangeCreated    ChangeType = "created"
	ChangeUpdated    ChangeType = "updated"
	ChangeDeleted    ChangeType = "deleted"
	ChangeMoved      ChangeType = "moved"
	ChangeCopied     ChangeType = "copied"
	ChangeReordered  ChangeType = "reordered"
	ChangeStatus     ChangeType = "status_changed"
	ChangeValueSet   ChangeType = "value_set"
	ChangeValueClear ChangeType = "value_cleared"
	ChangeReturned   ChangeType = "returned"
)

// HistoryEntry is the envelope handed to the external audit collaborator.
type HistoryEntry struct {
	ID         string     `json:"id"`
	EntityType string     `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	ActorID    string     `json:"actor_id"`
	ChangeType ChangeType `json:"change_type"`
	FieldName  string     `json:"field_name,omitempty"`
	OldValue   string     `json:"old_value,omitempty"`
	NewValue   string     `json:"new_value,omitempty"`
	Details    string     `json:"details,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// PendingHistory is an entry parked after its publish failed, waiting for redrive.
type PendingHistory struct {
	Entry     HistoryEntry
	Attempts  int
	LastError string
	ParkedAt  time.Time
}
