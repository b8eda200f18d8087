package domain

import "time"

// Event is a bookable one-on-one event. An event is open until a challenger
// claims a slot; OwnerID is set at creation, ChallengerID/Begin/BeginDate are
// set together by the successful challenge transaction and never change
// afterward.
//
// Invariant: ChallengerID == "" iff Begin == nil iff BeginDate == "".
type Event struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	OwnerID      string     `json:"owner_id"`
	ChallengerID string     `json:"challenger_id,omitempty"`
	Begin        *time.Time `json:"begin,omitempty"`
	BeginDate    string     `json:"begin_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Open reports whether the event still accepts a challenger.
func (e *Event) Open() bool {
	return e.ChallengerID == ""
}
