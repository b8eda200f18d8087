package docstore

import (
	"strconv"
	"time"

	"github.com/booking-redis/internal/domain"
)

// wireTimeLayout is fixed-width UTC so that the lexicographic order of
// encoded values matches time order; range predicates rely on this.
const wireTimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime encodes an instant in the wire timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(wireTimeLayout)
}

// ParseTime decodes a wire timestamp. The zero time is returned for values
// that are empty or not produced by FormatTime.
func ParseTime(s string) time.Time {
	t, err := time.Parse(wireTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Event field names on the wire.
const (
	fieldName        = "name"
	fieldDescription = "description"
	fieldBegin       = "begin"
	fieldBeginDate   = "begindate"
	fieldOwner       = "owner"
	fieldChallenger  = "challenger"
	fieldCreatedDate = "createddate"
)

// EncodeEvent flattens an event into wire fields. References are stored as
// document pointers; a zero CreatedAt becomes the server-timestamp sentinel
// so the store stamps the document at commit time.
func EncodeEvent(e domain.Event) map[string]string {
	fields := map[string]string{
		fieldName:        e.Name,
		fieldDescription: e.Description,
		fieldBeginDate:   e.BeginDate,
		fieldOwner:       userRef(e.OwnerID),
		fieldChallenger:  userRef(e.ChallengerID),
	}
	if e.Begin != nil {
		fields[fieldBegin] = FormatTime(*e.Begin)
	} else {
		fields[fieldBegin] = ""
	}
	if e.CreatedAt.IsZero() {
		fields[fieldCreatedDate] = ServerTimestamp
	} else {
		fields[fieldCreatedDate] = FormatTime(e.CreatedAt)
	}
	return fields
}

// DecodeEvent inflates wire fields into an event. Absent optional fields
// decode to their engine defaults.
func DecodeEvent(id string, fields map[string]string) domain.Event {
	e := domain.Event{
		ID:           id,
		Name:         fields[fieldName],
		Description:  fields[fieldDescription],
		BeginDate:    fields[fieldBeginDate],
		OwnerID:      refID(fields[fieldOwner]),
		ChallengerID: refID(fields[fieldChallenger]),
	}
	if v := fields[fieldBegin]; v != "" {
		t := ParseTime(v)
		e.Begin = &t
	}
	if v := fields[fieldCreatedDate]; v != "" && v != ServerTimestamp {
		e.CreatedAt = ParseTime(v)
	}
	return e
}

// User field names on the wire.
const (
	fieldDisplayName = "displayname"
	fieldIcon        = "icon"
	fieldWin         = "win"
	fieldLose        = "lose"
	fieldDraw        = "draw"
)

// EncodeUser flattens a user into wire fields.
func EncodeUser(u domain.User) map[string]string {
	return map[string]string{
		fieldDisplayName: u.DisplayName,
		fieldIcon:        u.IconURL,
		fieldWin:         strconv.Itoa(u.WinCount),
		fieldLose:        strconv.Itoa(u.LoseCount),
		fieldDraw:        strconv.Itoa(u.DrawCount),
	}
}

// DecodeUser inflates wire fields into a user. Missing or malformed counters
// decode to zero.
func DecodeUser(id string, fields map[string]string) domain.User {
	return domain.User{
		ID:          id,
		DisplayName: fields[fieldDisplayName],
		IconURL:     fields[fieldIcon],
		WinCount:    wireInt(fields[fieldWin]),
		LoseCount:   wireInt(fields[fieldLose]),
		DrawCount:   wireInt(fields[fieldDraw]),
	}
}

// EncodeFreetime flattens a freetime record. The slot map is the document:
// each "HH:MM" key becomes a field holding "" while open, or the booking
// event's document pointer once consumed.
func EncodeFreetime(f domain.Freetime) map[string]string {
	fields := make(map[string]string, len(f.Slots))
	for hhmm, eventID := range f.Slots {
		if eventID == domain.SlotOpen {
			fields[hhmm] = ""
		} else {
			fields[hhmm] = eventRef(eventID)
		}
	}
	return fields
}

// DecodeFreetime inflates wire fields into a freetime record for the given
// date and user.
func DecodeFreetime(date, userID string, fields map[string]string) domain.Freetime {
	slots := make(map[string]string, len(fields))
	for hhmm, ref := range fields {
		slots[hhmm] = refID(ref)
	}
	return domain.Freetime{Date: date, UserID: userID, Slots: slots}
}

// EncodeEventChallenge builds the partial update written by a successful
// challenge: challenger, start instant and start date land together.
func EncodeEventChallenge(challengerID string, begin time.Time, beginDate string) map[string]string {
	return map[string]string{
		fieldChallenger: userRef(challengerID),
		fieldBegin:      FormatTime(begin),
		fieldBeginDate:  beginDate,
	}
}

// EncodeUserUpdate builds the partial update for profile changes. Nil fields
// are left untouched.
func EncodeUserUpdate(u domain.UserUpdate) map[string]string {
	fields := make(map[string]string, 2)
	if u.DisplayName != nil {
		fields[fieldDisplayName] = *u.DisplayName
	}
	if u.IconURL != nil {
		fields[fieldIcon] = *u.IconURL
	}
	return fields
}

// Counter field names accepted by Store.Increment on user documents.
const (
	FieldWin  = fieldWin
	FieldLose = fieldLose
	FieldDraw = fieldDraw
)

// EventBeginDateEquals filters events booked on one local date.
func EventBeginDateEquals(date string) Predicate {
	return Predicate{Field: fieldBeginDate, Op: OpEq, Value: date}
}

// EventIsOpen filters events that have no challenger yet.
func EventIsOpen() Predicate {
	return Predicate{Field: fieldChallenger, Op: OpEq, Value: ""}
}

// EventCreatedAfter filters events created strictly after t.
func EventCreatedAfter(t time.Time) Predicate {
	return Predicate{Field: fieldCreatedDate, Op: OpGt, Value: FormatTime(t)}
}

func userRef(id string) string {
	if id == "" {
		return ""
	}
	return string(KindUser) + ":" + id
}

func eventRef(id string) string {
	return string(KindEvent) + ":" + id
}

func refID(ref string) string {
	if ref == "" {
		return ""
	}
	p, err := ParseRef(ref)
	if err != nil {
		return ""
	}
	return p.ID()
}

func wireInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
