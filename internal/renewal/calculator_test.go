package renewal

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNext(t *testing.T) {
	tests := []struct {
		name  string
		cycle string
		from  time.Time
		want  time.Time
	}{
		{"weekly", "weekly", date(2025, time.March, 3), date(2025, time.March, 10)},
		{"weekly across month boundary", "weekly", date(2025, time.January, 28), date(2025, time.February, 4)},
		{"monthly plain", "monthly", date(2025, time.April, 15), date(2025, time.May, 15)},
		{"monthly clamps to leap february", "monthly", date(2024, time.January, 31), date(2024, time.February, 29)},
		{"monthly clamps to short february", "monthly", date(2025, time.January, 31), date(2025, time.February, 28)},
		{"monthly 31st into 30-day month", "monthly", date(2025, time.March, 31), date(2025, time.April, 30)},
		{"monthly across year boundary", "monthly", date(2024, time.December, 14), date(2025, time.January, 14)},
		{"quarterly", "quarterly", date(2025, time.February, 10), date(2025, time.May, 10)},
		{"quarterly clamp", "quarterly", date(2025, time.November, 30), date(2026, time.February, 28)},
		{"yearly", "yearly", date(2025, time.June, 1), date(2026, time.June, 1)},
		{"yearly from leap day clamps", "yearly", date(2024, time.February, 29), date(2025, time.February, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.cycle, tt.from)
			if err != nil {
				t.Fatalf("Next(%q, %v) error: %v", tt.cycle, tt.from, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Next(%q, %v) = %v, want %v", tt.cycle, tt.from, got, tt.want)
			}
		})
	}
}

func TestNextUnknownCycle(t *testing.T) {
	if _, err := Next("fortnightly", date(2025, time.January, 1)); err == nil {
		t.Error("expected error for unknown cycle")
	}
}

func TestNextPreservesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	from := time.Date(2025, time.May, 20, 0, 0, 0, 0, loc)
	got, err := Next("monthly", from)
	if err != nil {
		t.Fatal(err)
	}
	if got.Location() != loc {
		t.Errorf("location = %v, want %v", got.Location(), loc)
	}
}
