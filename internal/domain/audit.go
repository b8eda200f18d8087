package domain

import "time"

// Audit entry kinds.
const (
	AuditEventCreated    = "event_created"
	AuditEventChallenged = "event_challenged"
	AuditFreetimeAdded   = "freetime_added"
	AuditFreetimeRemoved = "freetime_removed"
	AuditResultRecorded  = "result_recorded"
)

// AuditEntry is one row of the append-only booking audit log. Entries are
// recorded after a transaction commits, never inside it.
type AuditEntry struct {
	Kind    string    `json:"kind"`
	ActorID string    `json:"actor_id"`
	EventID string    `json:"event_id,omitempty"`
	Date    string    `json:"date,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}
