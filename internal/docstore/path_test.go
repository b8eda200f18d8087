package docstore

import (
	"testing"

	"github.com/booking-redis/internal/domain"
)

func TestPathKeys(t *testing.T) {
	event, err := EventDoc("e1")
	if err != nil {
		t.Fatalf("EventDoc: %v", err)
	}
	if got := event.Key(); got != "event:e1" {
		t.Errorf("event key = %q, want %q", got, "event:e1")
	}
	if got := event.IndexKey(); got != "event:all" {
		t.Errorf("event index key = %q, want %q", got, "event:all")
	}

	ft, err := FreetimeDoc("2026-05-01", "u1")
	if err != nil {
		t.Fatalf("FreetimeDoc: %v", err)
	}
	if got := ft.Key(); got != "freetime:2026-05-01:u1" {
		t.Errorf("freetime key = %q, want %q", got, "freetime:2026-05-01:u1")
	}
	if got := ft.IndexKey(); got != "freetime:2026-05-01:all" {
		t.Errorf("freetime index key = %q, want %q", got, "freetime:2026-05-01:all")
	}
}

func TestPathItemCollection(t *testing.T) {
	coll, err := FreetimeCollection("2026-05-01")
	if err != nil {
		t.Fatalf("FreetimeCollection: %v", err)
	}
	if coll.IsItem() {
		t.Error("collection path reports IsItem")
	}

	item := coll.Item("u1")
	if !item.IsItem() {
		t.Error("item path reports !IsItem")
	}
	if item.ID() != "u1" || item.Date() != "2026-05-01" {
		t.Errorf("item = %v, want id u1 on 2026-05-01", item)
	}
	if item.Collection() != coll {
		t.Errorf("Collection() = %v, want %v", item.Collection(), coll)
	}
}

func TestPathValidation(t *testing.T) {
	tests := []struct {
		name  string
		build func() (Path, error)
	}{
		{"empty event id", func() (Path, error) { return EventDoc("") }},
		{"event id with colon", func() (Path, error) { return EventDoc("a:b") }},
		{"user id with space", func() (Path, error) { return UserDoc("a b") }},
		{"malformed date", func() (Path, error) { return FreetimeCollection("2026-5-1") }},
		{"not a date", func() (Path, error) { return FreetimeDoc("tomorrow", "u1") }},
		{"empty user on freetime", func() (Path, error) { return FreetimeDoc("2026-05-01", "") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.build(); !domain.IsValidation(err) {
				t.Errorf("got %v, want validation error", err)
			}
		})
	}
}

func TestParseRef(t *testing.T) {
	p, err := ParseRef("user:u1")
	if err != nil {
		t.Fatalf("ParseRef(user:u1): %v", err)
	}
	if p.Kind() != KindUser || p.ID() != "u1" {
		t.Errorf("ParseRef(user:u1) = %v", p)
	}

	p, err = ParseRef("event:e1")
	if err != nil {
		t.Fatalf("ParseRef(event:e1): %v", err)
	}
	if p.Kind() != KindEvent || p.ID() != "e1" {
		t.Errorf("ParseRef(event:e1) = %v", p)
	}

	for _, ref := range []string{"", "u1", "user:", "freetime:2026-05-01:u1", "widget:w1"} {
		if _, err := ParseRef(ref); !domain.IsValidation(err) {
			t.Errorf("ParseRef(%q) = %v, want validation error", ref, err)
		}
	}
}
