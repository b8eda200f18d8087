// Package booking implements the transactional booking engine. Every mutating
// operation runs as one store transaction: either all of its writes commit
// together or none do, and conflicting concurrent attempts surface as
// ConflictError rather than partial state.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/booking-redis/internal/docstore"
	"github.com/booking-redis/internal/domain"
	"github.com/booking-redis/internal/localtime"
	"github.com/google/uuid"
)

// Engine orchestrates multi-document transactions over the document store.
// It holds no caller state: identity is an explicit parameter on every
// mutating operation.
type Engine struct {
	store  docstore.Store
	zone   localtime.Zone
	logger *slog.Logger
	newID  func() string
}

// NewEngine creates a booking engine on top of the given store.
func NewEngine(store docstore.Store, zone localtime.Zone, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		zone:   zone,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Zone returns the reference timezone slot keys are derived from.
func (e *Engine) Zone() localtime.Zone {
	return e.zone
}

// CreateEvent inserts a new open event owned by callerID and returns its id.
// No freetime is reserved at creation: the owner's slot is claimed by the
// challenge transaction once a challenger picks a start time.
func (e *Engine) CreateEvent(ctx context.Context, callerID, name, description string) (string, error) {
	if callerID == "" {
		return "", &domain.ValidationError{Reason: "empty caller identity"}
	}
	if name == "" {
		return "", &domain.ValidationError{Reason: "empty event name"}
	}

	id := e.newID()
	path, err := docstore.EventDoc(id)
	if err != nil {
		return "", err
	}

	event := domain.Event{ID: id, Name: name, Description: description, OwnerID: callerID}
	if err := e.store.Set(ctx, path, docstore.EncodeEvent(event)); err != nil {
		return "", fmt.Errorf("creating event: %w", err)
	}

	e.logger.Info("event created", "event_id", id, "owner_id", callerID)
	return id, nil
}

// ChallengeToEvent claims the slot at begin on the named event for callerID.
// One transaction reads the event, then the owner's freetime, then the
// challenger's (fixed order), and on success binds both freetime slots to the
// event and finalizes the event's challenger and start time. Any conflict
// aborts the whole transaction.
func (e *Engine) ChallengeToEvent(ctx context.Context, callerID string, begin time.Time, eventID string) (bool, error) {
	if callerID == "" {
		return false, &domain.ValidationError{Reason: "empty caller identity"}
	}

	eventPath, err := docstore.EventDoc(eventID)
	if err != nil {
		return false, err
	}

	begin = e.zone.Normalize(begin)
	slotDate := e.zone.Date(begin)
	slotKey := e.zone.HHMM(begin)

	err = e.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		eventSnap, err := tx.Get(ctx, eventPath)
		if err != nil {
			return err
		}
		if !eventSnap.Exists {
			return &domain.NotFoundError{Kind: "event"}
		}
		event := docstore.DecodeEvent(eventID, eventSnap.Fields)

		ownerPath, err := docstore.FreetimeDoc(slotDate, event.OwnerID)
		if err != nil {
			return err
		}
		ownerSnap, err := tx.Get(ctx, ownerPath)
		if err != nil {
			return err
		}
		if !ownerSnap.Exists {
			return &domain.ConflictError{Reason: domain.ReasonOwnerFreetimeNotSet}
		}
		owner := docstore.DecodeFreetime(slotDate, event.OwnerID, ownerSnap.Fields)
		if !owner.Offered(slotKey) || owner.BookedBy(slotKey) != domain.SlotOpen {
			return &domain.ConflictError{Reason: domain.ReasonOwnerSlotUnavailable}
		}

		// The slot check alone cannot reject a second challenge aimed at a
		// slot the first challenge never touched.
		if !event.Open() {
			return &domain.ConflictError{Reason: domain.ReasonAlreadyChallenged}
		}

		challengerPath, err := docstore.FreetimeDoc(slotDate, callerID)
		if err != nil {
			return err
		}
		challengerSnap, err := tx.Get(ctx, challengerPath)
		if err != nil {
			return err
		}
		challenger := docstore.DecodeFreetime(slotDate, callerID, challengerSnap.Fields)
		if challenger.BookedBy(slotKey) != domain.SlotOpen {
			return &domain.ConflictError{Reason: domain.ReasonDoubleBooking}
		}

		owner.Slots[slotKey] = eventID
		if challenger.Slots == nil {
			challenger.Slots = make(map[string]string, 1)
		}
		challenger.Slots[slotKey] = eventID

		tx.Set(ownerPath, docstore.EncodeFreetime(owner))
		tx.Set(challengerPath, docstore.EncodeFreetime(challenger))
		tx.Update(eventPath, docstore.EncodeEventChallenge(callerID, begin, slotDate))
		return nil
	})
	if err != nil {
		return false, err
	}

	e.logger.Info("event challenged",
		"event_id", eventID,
		"challenger_id", callerID,
		"date", slotDate,
		"slot", slotKey,
	)
	return true, nil
}

// AddFreetime offers the given instants as open slots for callerID. All
// instants must fall on the same local date. Existing bookings are never
// clobbered: a requested slot that is already booked keeps its booking.
func (e *Engine) AddFreetime(ctx context.Context, callerID string, times []time.Time) error {
	date, keys, err := e.slotBatch(callerID, times)
	if err != nil {
		return err
	}
	path, err := docstore.FreetimeDoc(date, callerID)
	if err != nil {
		return err
	}

	err = e.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, path)
		if err != nil {
			return err
		}
		record := docstore.DecodeFreetime(date, callerID, snap.Fields)
		if record.Slots == nil {
			record.Slots = make(map[string]string, len(keys))
		}
		for _, key := range keys {
			if _, ok := record.Slots[key]; !ok {
				record.Slots[key] = domain.SlotOpen
			}
		}

		// Full-document replace, so concurrent batch additions cannot
		// silently drop one another's slots.
		tx.Set(path, docstore.EncodeFreetime(record))
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("freetime added", "user_id", callerID, "date", date, "slots", len(keys))
	return nil
}

// RemoveFreetime withdraws the given slots. The call is all-or-nothing: if
// any requested slot is absent or already booked, nothing is removed and the
// error lists every offending slot key.
func (e *Engine) RemoveFreetime(ctx context.Context, callerID string, times []time.Time) error {
	date, keys, err := e.slotBatch(callerID, times)
	if err != nil {
		return err
	}
	path, err := docstore.FreetimeDoc(date, callerID)
	if err != nil {
		return err
	}

	err = e.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, path)
		if err != nil {
			return err
		}
		if !snap.Exists {
			return &domain.ConflictError{Reason: domain.ReasonNoExistingRecord}
		}
		record := docstore.DecodeFreetime(date, callerID, snap.Fields)

		var offending []string
		toDelete := make(map[string]bool, len(keys))
		for _, key := range keys {
			switch {
			case !record.Offered(key):
				offending = append(offending, key+": "+domain.ReasonSlotNotOffered)
			case record.BookedBy(key) != domain.SlotOpen:
				offending = append(offending, key+": "+domain.ReasonSlotBooked)
			default:
				toDelete[key] = true
			}
		}
		if len(offending) > 0 {
			sort.Strings(offending)
			return &domain.ConflictError{Reason: "slots not removable", Slots: offending}
		}

		for key := range toDelete {
			delete(record.Slots, key)
		}
		tx.Set(path, docstore.EncodeFreetime(record))
		return nil
	})
	if err != nil {
		return err
	}

	e.logger.Info("freetime removed", "user_id", callerID, "date", date, "slots", len(keys))
	return nil
}

// slotBatch validates a freetime batch and derives its date and slot keys.
func (e *Engine) slotBatch(callerID string, times []time.Time) (string, []string, error) {
	if callerID == "" {
		return "", nil, &domain.ValidationError{Reason: "empty caller identity"}
	}
	if len(times) == 0 {
		return "", nil, &domain.ValidationError{Reason: "empty time list"}
	}

	date := e.zone.Date(times[0])
	seen := make(map[string]bool, len(times))
	keys := make([]string, 0, len(times))
	for _, t := range times {
		if e.zone.Date(t) != date {
			return "", nil, &domain.ValidationError{Reason: "mixed dates in freetime batch"}
		}
		key := e.zone.HHMM(t)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return date, keys, nil
}

// GetEvent fetches one event.
func (e *Engine) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	path, err := docstore.EventDoc(eventID)
	if err != nil {
		return nil, err
	}
	snap, err := e.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, &domain.NotFoundError{Kind: "event"}
	}
	event := docstore.DecodeEvent(eventID, snap.Fields)
	return &event, nil
}

// ListEvents returns every event, oldest first.
func (e *Engine) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return e.queryEvents(ctx)
}

// ListEventsOn returns the events booked on one local date.
func (e *Engine) ListEventsOn(ctx context.Context, date string) ([]domain.Event, error) {
	if !e.zone.ValidDate(date) {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("malformed date %q", date)}
	}
	return e.queryEvents(ctx, docstore.EventBeginDateEquals(date))
}

// ListOpenEvents returns the events that still accept a challenger.
func (e *Engine) ListOpenEvents(ctx context.Context) ([]domain.Event, error) {
	return e.queryEvents(ctx, docstore.EventIsOpen())
}

// ListEventsCreatedAfter returns events created strictly after t.
func (e *Engine) ListEventsCreatedAfter(ctx context.Context, t time.Time) ([]domain.Event, error) {
	return e.queryEvents(ctx, docstore.EventCreatedAfter(t))
}

func (e *Engine) queryEvents(ctx context.Context, preds ...docstore.Predicate) ([]domain.Event, error) {
	snaps, err := e.store.Query(ctx, docstore.EventCollection(), preds...)
	if err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(snaps))
	for _, snap := range snaps {
		events = append(events, docstore.DecodeEvent(snap.Path.ID(), snap.Fields))
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

// GetFreetime fetches one user's freetime record for a date.
func (e *Engine) GetFreetime(ctx context.Context, date, userID string) (*domain.Freetime, error) {
	path, err := docstore.FreetimeDoc(date, userID)
	if err != nil {
		return nil, err
	}
	snap, err := e.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, &domain.NotFoundError{Kind: "freetime"}
	}
	record := docstore.DecodeFreetime(date, userID, snap.Fields)
	return &record, nil
}

// ListFreetime returns every user's freetime record for a date.
func (e *Engine) ListFreetime(ctx context.Context, date string) ([]domain.Freetime, error) {
	collection, err := docstore.FreetimeCollection(date)
	if err != nil {
		return nil, err
	}
	snaps, err := e.store.Query(ctx, collection)
	if err != nil {
		return nil, err
	}
	records := make([]domain.Freetime, 0, len(snaps))
	for _, snap := range snaps {
		records = append(records, docstore.DecodeFreetime(date, snap.Path.ID(), snap.Fields))
	}
	return records, nil
}

// AddUser registers a user with zeroed result counters.
func (e *Engine) AddUser(ctx context.Context, userID, displayName, iconURL string) error {
	path, err := docstore.UserDoc(userID)
	if err != nil {
		return err
	}
	user := domain.User{ID: userID, DisplayName: displayName, IconURL: iconURL}
	if err := e.store.Set(ctx, path, docstore.EncodeUser(user)); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetUser fetches one user.
func (e *Engine) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	path, err := docstore.UserDoc(userID)
	if err != nil {
		return nil, err
	}
	snap, err := e.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, &domain.NotFoundError{Kind: "user"}
	}
	user := docstore.DecodeUser(userID, snap.Fields)
	return &user, nil
}

// ListUsers returns every registered user.
func (e *Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	snaps, err := e.store.Query(ctx, docstore.UserCollection())
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(snaps))
	for _, snap := range snaps {
		users = append(users, docstore.DecodeUser(snap.Path.ID(), snap.Fields))
	}
	return users, nil
}

// UpdateUser applies a partial profile update.
func (e *Engine) UpdateUser(ctx context.Context, userID string, upd domain.UserUpdate) error {
	path, err := docstore.UserDoc(userID)
	if err != nil {
		return err
	}
	fields := docstore.EncodeUserUpdate(upd)
	if len(fields) == 0 {
		return &domain.ValidationError{Reason: "no profile fields to update"}
	}
	return e.store.Update(ctx, path, fields)
}

// DeleteUser removes a user document. Deleting an absent user is a no-op.
func (e *Engine) DeleteUser(ctx context.Context, userID string) error {
	path, err := docstore.UserDoc(userID)
	if err != nil {
		return err
	}
	return e.store.Delete(ctx, path)
}

// IncrementWin adds one to the user's win counter.
func (e *Engine) IncrementWin(ctx context.Context, userID string) error {
	return e.incrementCounter(ctx, userID, docstore.FieldWin)
}

// IncrementLose adds one to the user's lose counter.
func (e *Engine) IncrementLose(ctx context.Context, userID string) error {
	return e.incrementCounter(ctx, userID, docstore.FieldLose)
}

// IncrementDraw adds one to the user's draw counter.
func (e *Engine) IncrementDraw(ctx context.Context, userID string) error {
	return e.incrementCounter(ctx, userID, docstore.FieldDraw)
}

// The existence check and the increment run in one transaction so that a
// concurrent delete aborts the increment instead of resurrecting the user as
// a counter-only document.
func (e *Engine) incrementCounter(ctx context.Context, userID, field string) error {
	path, err := docstore.UserDoc(userID)
	if err != nil {
		return err
	}
	return e.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, path)
		if err != nil {
			return err
		}
		if !snap.Exists {
			return &domain.NotFoundError{Kind: "user"}
		}
		tx.Increment(path, field, 1)
		return nil
	})
}
