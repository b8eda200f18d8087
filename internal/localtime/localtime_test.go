package localtime

import (
	"testing"
	"time"

	"github.com/booking-redis/internal/domain"
)

func TestZone_DateAndHHMM(t *testing.T) {
	zone := MustZone(DefaultTimezone)

	tests := []struct {
		name     string
		instant  time.Time
		wantDate string
		wantHHMM string
	}{
		{
			name:     "utc morning is jst evening",
			instant:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			wantDate: "2024-05-01",
			wantHHMM: "19:00",
		},
		{
			name:     "utc evening crosses to next jst day",
			instant:  time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC),
			wantDate: "2024-05-02",
			wantHHMM: "08:30",
		},
		{
			name:     "already in reference zone",
			instant:  time.Date(2024, 5, 1, 10, 0, 0, 0, zone.Location()),
			wantDate: "2024-05-01",
			wantHHMM: "10:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := zone.Date(tt.instant); got != tt.wantDate {
				t.Errorf("Date() = %q, want %q", got, tt.wantDate)
			}
			if got := zone.HHMM(tt.instant); got != tt.wantHHMM {
				t.Errorf("HHMM() = %q, want %q", got, tt.wantHHMM)
			}
		})
	}
}

func TestZone_SameInstantDifferentSourceZones(t *testing.T) {
	zone := MustZone(DefaultTimezone)

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("loading test zone: %v", err)
	}

	utc := time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)
	inNY := utc.In(ny)

	if zone.Date(utc) != zone.Date(inNY) || zone.HHMM(utc) != zone.HHMM(inNY) {
		t.Errorf("same instant produced different slot keys: %s/%s vs %s/%s",
			zone.Date(utc), zone.HHMM(utc), zone.Date(inNY), zone.HHMM(inNY))
	}
}

func TestZone_ComposeRoundTrip(t *testing.T) {
	zone := MustZone(DefaultTimezone)

	instants := []time.Time{
		time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 15, 0, 0, 0, time.UTC),
	}

	for _, instant := range instants {
		date, hhmm := zone.Date(instant), zone.HHMM(instant)
		composed, err := zone.Compose(date, hhmm)
		if err != nil {
			t.Fatalf("Compose(%q, %q) failed: %v", date, hhmm, err)
		}
		if zone.Date(composed) != date || zone.HHMM(composed) != hhmm {
			t.Errorf("round trip of %v: got %s %s, want %s %s",
				instant, zone.Date(composed), zone.HHMM(composed), date, hhmm)
		}
	}
}

func TestZone_ComposeAt(t *testing.T) {
	zone := MustZone(DefaultTimezone)

	day := time.Date(2024, 5, 1, 3, 0, 0, 0, zone.Location())
	got, err := zone.ComposeAt(day, "10:30")
	if err != nil {
		t.Fatalf("ComposeAt failed: %v", err)
	}
	want := time.Date(2024, 5, 1, 10, 30, 0, 0, zone.Location())
	if !got.Equal(want) {
		t.Errorf("ComposeAt = %v, want %v", got, want)
	}
}

func TestZone_ComposeMalformed(t *testing.T) {
	zone := MustZone(DefaultTimezone)

	tests := []struct {
		name string
		date string
		hhmm string
	}{
		{"bad date", "2024/05/01", "10:00"},
		{"empty date", "", "10:00"},
		{"bad time", "2024-05-01", "25:61"},
		{"empty time", "2024-05-01", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := zone.Compose(tt.date, tt.hhmm)
			if !domain.IsValidation(err) {
				t.Errorf("Compose(%q, %q) = %v, want ValidationError", tt.date, tt.hhmm, err)
			}
		})
	}
}

func TestZone_Normalize(t *testing.T) {
	zone := MustZone(DefaultTimezone)

	utc := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	normalized := zone.Normalize(utc)

	if !normalized.Equal(utc) {
		t.Errorf("Normalize changed the instant: %v vs %v", normalized, utc)
	}
	if normalized.Location() != zone.Location() {
		t.Errorf("Normalize kept location %v", normalized.Location())
	}
}

func TestNewZone_Unknown(t *testing.T) {
	if _, err := NewZone("Not/AZone"); err == nil {
		t.Error("NewZone accepted an unknown timezone")
	}
}
