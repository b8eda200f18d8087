package docstore

import (
	"reflect"
	"testing"
	"time"

	"github.com/booking-redis/internal/domain"
)

func TestEventRoundTrip(t *testing.T) {
	begin := time.Date(2026, 5, 1, 1, 0, 0, 0, time.UTC)
	created := time.Date(2026, 4, 28, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		event domain.Event
	}{
		{
			name: "booked event",
			event: domain.Event{
				ID:           "e1",
				Name:         "Sync",
				Description:  "weekly",
				OwnerID:      "owner",
				ChallengerID: "challenger",
				Begin:        &begin,
				BeginDate:    "2026-05-01",
				CreatedAt:    created,
			},
		},
		{
			name: "open event",
			event: domain.Event{
				ID:        "e2",
				Name:      "Open slot",
				OwnerID:   "owner",
				CreatedAt: created,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire := EncodeEvent(tt.event)
			got := DecodeEvent(tt.event.ID, wire)
			if !reflect.DeepEqual(got, tt.event) {
				t.Errorf("round trip = %+v, want %+v", got, tt.event)
			}
			// Re-encoding a decoded document reproduces it exactly.
			if again := EncodeEvent(got); !reflect.DeepEqual(again, wire) {
				t.Errorf("wire round trip = %v, want %v", again, wire)
			}
		})
	}
}

func TestEncodeEventStampsCreation(t *testing.T) {
	fields := EncodeEvent(domain.Event{ID: "e1", Name: "Sync", OwnerID: "owner"})
	if fields["createddate"] != ServerTimestamp {
		t.Errorf("createddate = %q, want server timestamp sentinel", fields["createddate"])
	}

	// The sentinel must never leak out of a decode.
	if got := DecodeEvent("e1", fields); !got.CreatedAt.IsZero() {
		t.Errorf("CreatedAt = %v, want zero", got.CreatedAt)
	}
}

func TestUserRoundTrip(t *testing.T) {
	user := domain.User{
		ID:          "u1",
		DisplayName: "Alice",
		IconURL:     "https://example.com/a.png",
		WinCount:    3,
		LoseCount:   1,
		DrawCount:   2,
	}
	if got := DecodeUser(user.ID, EncodeUser(user)); !reflect.DeepEqual(got, user) {
		t.Errorf("round trip = %+v, want %+v", got, user)
	}
}

func TestDecodeUserDefaults(t *testing.T) {
	got := DecodeUser("u1", map[string]string{"displayname": "Bob", "win": "junk"})
	want := domain.User{ID: "u1", DisplayName: "Bob"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sparse decode = %+v, want %+v", got, want)
	}
}

func TestFreetimeRoundTrip(t *testing.T) {
	ft := domain.Freetime{
		Date:   "2026-05-01",
		UserID: "u1",
		Slots: map[string]string{
			"10:00": domain.SlotOpen,
			"11:00": "e1",
		},
	}
	fields := EncodeFreetime(ft)
	if fields["10:00"] != "" {
		t.Errorf("open slot = %q, want empty", fields["10:00"])
	}
	if fields["11:00"] != "event:e1" {
		t.Errorf("booked slot = %q, want %q", fields["11:00"], "event:e1")
	}
	if got := DecodeFreetime(ft.Date, ft.UserID, fields); !reflect.DeepEqual(got, ft) {
		t.Errorf("round trip = %+v, want %+v", got, ft)
	}
}

func TestWireTimeOrdering(t *testing.T) {
	// Range predicates compare encoded timestamps as strings, so encoding
	// must preserve order across year, day and sub-second boundaries.
	instants := []time.Time{
		time.Date(1999, 12, 31, 23, 59, 59, 999999999, time.UTC),
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 1, 0, 0, 0, 1, time.UTC),
		time.Date(2026, 5, 1, 0, 0, 1, 0, time.UTC),
		time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := 1; i < len(instants); i++ {
		a, b := FormatTime(instants[i-1]), FormatTime(instants[i])
		if !(a < b) {
			t.Errorf("FormatTime order broken: %q >= %q", a, b)
		}
	}
}

func TestParseTimeMalformed(t *testing.T) {
	for _, s := range []string{"", "yesterday", "2026-05-01T01:00:00Z"} {
		if got := ParseTime(s); !got.IsZero() {
			t.Errorf("ParseTime(%q) = %v, want zero", s, got)
		}
	}
}

func TestEventPredicates(t *testing.T) {
	begin := time.Date(2026, 5, 1, 1, 0, 0, 0, time.UTC)
	booked := EncodeEvent(domain.Event{
		ID: "e1", Name: "Sync", OwnerID: "o", ChallengerID: "c",
		Begin: &begin, BeginDate: "2026-05-01", CreatedAt: begin,
	})
	open := EncodeEvent(domain.Event{ID: "e2", Name: "Open", OwnerID: "o", CreatedAt: begin.Add(time.Hour)})

	if !matches(booked, []Predicate{EventBeginDateEquals("2026-05-01")}) {
		t.Error("booked event does not match its own date")
	}
	if matches(open, []Predicate{EventBeginDateEquals("2026-05-01")}) {
		t.Error("open event matches a date filter")
	}
	if matches(booked, []Predicate{EventIsOpen()}) {
		t.Error("booked event matches the open filter")
	}
	if !matches(open, []Predicate{EventIsOpen()}) {
		t.Error("open event does not match the open filter")
	}
	if !matches(open, []Predicate{EventCreatedAfter(begin)}) {
		t.Error("later event does not match created-after")
	}
	if matches(booked, []Predicate{EventCreatedAfter(begin)}) {
		t.Error("created-after is not strict")
	}
}
