package docstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/booking-redis/internal/domain"
)

// Kind identifies an entity collection.
type Kind string

const (
	KindEvent    Kind = "event"
	KindUser     Kind = "user"
	KindFreetime Kind = "freetime"
)

// Path addresses a document or a collection in the store. Paths are pure
// values; building one never touches the store. Freetime collections are
// scoped to one local date.
type Path struct {
	kind Kind
	date string
	id   string
}

// EventCollection returns the collection path holding all events.
func EventCollection() Path {
	return Path{kind: KindEvent}
}

// EventDoc returns the item path of a single event.
func EventDoc(eventID string) (Path, error) {
	if err := validateID("event id", eventID); err != nil {
		return Path{}, err
	}
	return Path{kind: KindEvent, id: eventID}, nil
}

// UserCollection returns the collection path holding all users.
func UserCollection() Path {
	return Path{kind: KindUser}
}

// UserDoc returns the item path of a single user.
func UserDoc(userID string) (Path, error) {
	if err := validateID("user id", userID); err != nil {
		return Path{}, err
	}
	return Path{kind: KindUser, id: userID}, nil
}

// FreetimeCollection returns the collection path of all freetime records on
// one "YYYY-MM-DD" date.
func FreetimeCollection(date string) (Path, error) {
	if err := validateDate(date); err != nil {
		return Path{}, err
	}
	return Path{kind: KindFreetime, date: date}, nil
}

// FreetimeDoc returns the item path of one user's freetime record on a date.
func FreetimeDoc(date, userID string) (Path, error) {
	if err := validateDate(date); err != nil {
		return Path{}, err
	}
	if err := validateID("user id", userID); err != nil {
		return Path{}, err
	}
	return Path{kind: KindFreetime, date: date, id: userID}, nil
}

// IsItem reports whether p addresses a single document.
func (p Path) IsItem() bool {
	return p.id != ""
}

// Kind returns the entity kind the path addresses.
func (p Path) Kind() Kind {
	return p.kind
}

// ID returns the document id, or "" for collection paths.
func (p Path) ID() string {
	return p.id
}

// Date returns the scoping date of a freetime path, or "" otherwise.
func (p Path) Date() string {
	return p.date
}

// Item returns the item path for id inside the collection p.
func (p Path) Item(id string) Path {
	return Path{kind: p.kind, date: p.date, id: id}
}

// Collection returns the collection owning p.
func (p Path) Collection() Path {
	return Path{kind: p.kind, date: p.date}
}

// Key returns the store key of an item path.
func (p Path) Key() string {
	if p.kind == KindFreetime {
		return fmt.Sprintf("%s:%s:%s", p.kind, p.date, p.id)
	}
	return fmt.Sprintf("%s:%s", p.kind, p.id)
}

// IndexKey returns the key of the membership index of the owning collection.
func (p Path) IndexKey() string {
	if p.kind == KindFreetime {
		return fmt.Sprintf("%s:%s:all", p.kind, p.date)
	}
	return fmt.Sprintf("%s:all", p.kind)
}

func (p Path) String() string {
	if p.IsItem() {
		return p.Key()
	}
	return p.IndexKey()
}

// ParseRef resolves a stored document pointer ("event:<id>" or "user:<id>")
// back into a Path. Freetime documents are never the target of a reference.
func ParseRef(ref string) (Path, error) {
	kind, id, ok := strings.Cut(ref, ":")
	if !ok || id == "" {
		return Path{}, &domain.ValidationError{Reason: fmt.Sprintf("malformed document reference %q", ref)}
	}
	switch Kind(kind) {
	case KindEvent:
		return EventDoc(id)
	case KindUser:
		return UserDoc(id)
	}
	return Path{}, &domain.ValidationError{Reason: fmt.Sprintf("unknown reference kind %q", kind)}
}

func validateID(what, id string) error {
	if id == "" {
		return &domain.ValidationError{Reason: "empty " + what}
	}
	if strings.ContainsAny(id, ":/ \t\n") {
		return &domain.ValidationError{Reason: fmt.Sprintf("malformed %s %q", what, id)}
	}
	return nil
}

func validateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return &domain.ValidationError{Reason: fmt.Sprintf("malformed date %q", date)}
	}
	return nil
}
