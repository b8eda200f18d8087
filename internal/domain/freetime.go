package domain

// Freetime is one user's bookable slots for one local date. Slots maps an
// "HH:MM" key to the id of the event that booked it, or "" while the slot is
// still open. A key that is absent was never offered.
type Freetime struct {
	Date   string            `json:"date"`
	UserID string            `json:"user_id"`
	Slots  map[string]string `json:"slots"`
}

// SlotOpen is the value of an offered but unbooked slot.
const SlotOpen = ""

// Offered reports whether hhmm is present in the record at all.
func (f *Freetime) Offered(hhmm string) bool {
	_, ok := f.Slots[hhmm]
	return ok
}

// BookedBy returns the booking event id for hhmm, or "" when the slot is open
// or was never offered.
func (f *Freetime) BookedBy(hhmm string) string {
	return f.Slots[hhmm]
}
