// Package localtime normalizes instants to the single reference timezone all
// slot keys are derived from. Two callers whose clocks carry different zone
// metadata must map the same instant to the same date and "HH:MM" key, so
// every conversion in the booking path goes through a Zone.
package localtime

import (
	"fmt"
	"time"

	"github.com/booking-redis/internal/domain"
)

const (
	// DefaultTimezone is the reference timezone used unless configured
	// otherwise.
	DefaultTimezone = "Asia/Tokyo"

	dateLayout = "2006-01-02"
	hhmmLayout = "15:04"
)

// Zone is the fixed reference timezone. The zero value is not usable; build
// one with NewZone or MustZone.
type Zone struct {
	loc *time.Location
}

// NewZone loads the named IANA timezone.
func NewZone(name string) (Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return Zone{loc: loc}, nil
}

// MustZone is NewZone for statically known names; it panics on failure.
func MustZone(name string) Zone {
	z, err := NewZone(name)
	if err != nil {
		panic(err)
	}
	return z
}

// Location returns the underlying time.Location.
func (z Zone) Location() *time.Location {
	return z.loc
}

// Date returns the canonical "YYYY-MM-DD" string for t in the reference
// timezone.
func (z Zone) Date(t time.Time) string {
	return t.In(z.loc).Format(dateLayout)
}

// HHMM returns the canonical "HH:MM" slot key for t in the reference
// timezone.
func (z Zone) HHMM(t time.Time) string {
	return t.In(z.loc).Format(hhmmLayout)
}

// Compose builds the instant at hhmm on the given "YYYY-MM-DD" date in the
// reference timezone.
func (z Zone) Compose(date, hhmm string) (time.Time, error) {
	if _, err := time.ParseInLocation(dateLayout, date, z.loc); err != nil {
		return time.Time{}, &domain.ValidationError{Reason: fmt.Sprintf("malformed date %q", date)}
	}
	t, err := time.ParseInLocation(dateLayout+" "+hhmmLayout, date+" "+hhmm, z.loc)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Reason: fmt.Sprintf("malformed time %q", hhmm)}
	}
	return t, nil
}

// ComposeAt is Compose with the date taken from an instant instead of a
// string.
func (z Zone) ComposeAt(day time.Time, hhmm string) (time.Time, error) {
	return z.Compose(z.Date(day), hhmm)
}

// Normalize re-expresses t using the reference timezone's wall-clock fields.
// The instant is unchanged; only the zone metadata is rewritten.
func (z Zone) Normalize(t time.Time) time.Time {
	return t.In(z.loc)
}

// ValidDate reports whether s is a well-formed "YYYY-MM-DD" date.
func (z Zone) ValidDate(s string) bool {
	_, err := time.ParseInLocation(dateLayout, s, z.loc)
	return err == nil
}
