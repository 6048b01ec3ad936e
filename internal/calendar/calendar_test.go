package calendar

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name string
		ref  civil.Date
		want civil.Date
	}{
		{"Sunday", date(2024, time.June, 2), date(2024, time.June, 2)},
		{"Monday", date(2024, time.June, 3), date(2024, time.June, 2)},
		{"Saturday", date(2024, time.June, 8), date(2024, time.June, 2)},
		{"AcrossMonth", date(2024, time.March, 1), date(2024, time.February, 25)},
		{"AcrossYear", date(2025, time.January, 1), date(2024, time.December, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekStart(tt.ref); got != tt.want {
				t.Errorf("WeekStart(%s) = %s, want %s", tt.ref, got, tt.want)
			}
		})
	}
}

func TestWeekStartOf_UsesLocalCivilDate(t *testing.T) {
	// 23:30 on Saturday in UTC-5 is already Sunday in UTC.
	loc := time.FixedZone("UTC-5", -5*60*60)
	ts := time.Date(2024, time.June, 8, 23, 30, 0, 0, loc)

	if got, want := WeekStartOf(ts), date(2024, time.June, 2); got != want {
		t.Errorf("Expected week start %s, got %s", want, got)
	}
}

func TestWeekDates(t *testing.T) {
	start := date(2024, time.June, 2)
	seq := WeekDates(start)

	var first []civil.Date
	for d := range seq {
		first = append(first, d)
	}
	if len(first) != DaysPerWeek {
		t.Fatalf("Expected %d dates, got %d", DaysPerWeek, len(first))
	}
	for i, d := range first {
		if want := start.AddDays(i); d != want {
			t.Errorf("date %d: expected %s, got %s", i, want, d)
		}
	}

	t.Run("Restartable", func(t *testing.T) {
		n := 0
		for range seq {
			n++
		}
		if n != DaysPerWeek {
			t.Errorf("Expected second iteration to yield %d dates, got %d", DaysPerWeek, n)
		}
	})

	t.Run("EarlyBreak", func(t *testing.T) {
		n := 0
		for range seq {
			n++
			if n == 3 {
				break
			}
		}
		if n != 3 {
			t.Errorf("Expected to stop after 3, got %d", n)
		}
	})

	if got := WeekEnd(start); got != date(2024, time.June, 8) {
		t.Errorf("Expected week end 2024-06-08, got %s", got)
	}
	if got := ShiftWeeks(start, -1); got != date(2024, time.May, 26) {
		t.Errorf("Expected previous week 2024-05-26, got %s", got)
	}
}

func TestSlotKey(t *testing.T) {
	k := NewSlotKey(date(2024, time.June, 3), Dinner)
	if k.String() != "2024-06-03|dinner" {
		t.Fatalf("Unexpected slot key string %q", k.String())
	}

	parsed, err := ParseSlotKey("2024-06-03|Dinner")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if parsed != k {
		t.Errorf("Expected %v, got %v", k, parsed)
	}

	for _, bad := range []string{"", "2024-06-03", "2024-13-03|dinner", "2024-06-03|brunch"} {
		if _, err := ParseSlotKey(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestMealTypes(t *testing.T) {
	all := MealTypes()
	for i := 1; i < len(all); i++ {
		if !all[i-1].Less(all[i]) {
			t.Errorf("Expected %s < %s", all[i-1], all[i])
		}
	}

	if m, ok := ParseMealType("  LUNCH "); !ok || m != Lunch {
		t.Errorf("Expected lunch, got %q (%v)", m, ok)
	}
	if _, ok := ParseMealType("brunch"); ok {
		t.Error("Expected brunch to be rejected")
	}
	if Snack.Title() != "Snack" {
		t.Errorf("Unexpected title %q", Snack.Title())
	}
}

func TestCovers(t *testing.T) {
	start, end := date(2024, time.June, 3), date(2024, time.June, 5)
	if !Covers(start, end, start) || !Covers(start, end, end) || !Covers(start, end, date(2024, time.June, 4)) {
		t.Error("Expected range to cover its own dates")
	}
	if Covers(start, end, date(2024, time.June, 2)) || Covers(start, end, date(2024, time.June, 6)) {
		t.Error("Expected range not to cover neighbouring dates")
	}
	if Compare(start, end) != -1 || Compare(end, start) != 1 || Compare(start, start) != 0 {
		t.Error("Compare returned an unexpected ordering")
	}
}
