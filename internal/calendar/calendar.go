// Package calendar holds the date model of the weekly meal calendar:
// week boundaries, meal types and the slot keys capacity is counted on.
//
// Every date is a civil.Date. Nothing in this package converts through a
// timestamp in another location, so a slot key never shifts across a
// timezone boundary.
package calendar

import (
	"fmt"
	"iter"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DaysPerWeek is the number of columns the calendar renders.
const DaysPerWeek = 7

// MealType is one row of the calendar.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snack     MealType = "snack"
)

var mealOrder = map[MealType]int{
	Breakfast: 0,
	Lunch:     1,
	Dinner:    2,
	Snack:     3,
}

// MealTypes returns every meal type in display order.
func MealTypes() []MealType {
	return []MealType{Breakfast, Lunch, Dinner, Snack}
}

// ParseMealType matches s case-insensitively against the known meal types.
func ParseMealType(s string) (MealType, bool) {
	m := MealType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := mealOrder[m]; !ok {
		return "", false
	}
	return m, true
}

// Valid reports whether m is one of the four meal types.
func (m MealType) Valid() bool {
	_, ok := mealOrder[m]
	return ok
}

// Less orders meal types breakfast < lunch < dinner < snack.
func (m MealType) Less(o MealType) bool {
	return mealOrder[m] < mealOrder[o]
}

// Title is the display label, e.g. "Dinner".
func (m MealType) Title() string {
	if m == "" {
		return ""
	}
	return strings.ToUpper(string(m[:1])) + string(m[1:])
}

// WeekStart returns the Sunday on or before ref.
func WeekStart(ref civil.Date) civil.Date {
	return ref.AddDays(-int(Weekday(ref)))
}

// WeekStartOf strips the time of day from t using the civil fields of t in
// its own location and returns the Sunday of that week.
func WeekStartOf(t time.Time) civil.Date {
	return WeekStart(civil.DateOf(t))
}

// WeekEnd is the last (Saturday) date of the week beginning at start.
func WeekEnd(start civil.Date) civil.Date {
	return start.AddDays(DaysPerWeek - 1)
}

// ShiftWeeks moves a week start by n weeks (negative goes back).
func ShiftWeeks(start civil.Date, n int) civil.Date {
	return start.AddDays(n * DaysPerWeek)
}

// WeekDates yields the seven consecutive dates beginning at start. The
// sequence is computed on demand and can be ranged over any number of times.
func WeekDates(start civil.Date) iter.Seq[civil.Date] {
	return func(yield func(civil.Date) bool) {
		for i := 0; i < DaysPerWeek; i++ {
			if !yield(start.AddDays(i)) {
				return
			}
		}
	}
}

// Weekday of a civil date, independent of any location.
func Weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

// Compare returns -1, 0 or +1 as a is before, equal to or after b.
func Compare(a, b civil.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// Covers reports whether d lies in the inclusive range [start, end].
func Covers(start, end, d civil.Date) bool {
	return !d.Before(start) && !d.After(end)
}

// SlotKey identifies one calendar cell. It is comparable and can be used as
// a map key directly.
type SlotKey struct {
	Date     civil.Date
	MealType MealType
}

// NewSlotKey builds the key of the (date, meal type) cell.
func NewSlotKey(d civil.Date, m MealType) SlotKey {
	return SlotKey{Date: d, MealType: m}
}

// String renders the canonical "YYYY-MM-DD|mealType" form.
func (k SlotKey) String() string {
	return k.Date.String() + "|" + string(k.MealType)
}

// ParseSlotKey is the inverse of SlotKey.String.
func ParseSlotKey(s string) (SlotKey, error) {
	datePart, mealPart, ok := strings.Cut(s, "|")
	if !ok {
		return SlotKey{}, fmt.Errorf("invalid slot key %q: missing separator", s)
	}
	d, err := civil.ParseDate(datePart)
	if err != nil {
		return SlotKey{}, fmt.Errorf("invalid slot key %q: %w", s, err)
	}
	m, ok := ParseMealType(mealPart)
	if !ok {
		return SlotKey{}, fmt.Errorf("invalid slot key %q: unknown meal type %q", s, mealPart)
	}
	return SlotKey{Date: d, MealType: m}, nil
}

// MarshalText lets slot keys travel as JSON strings.
func (k SlotKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the canonical form.
func (k *SlotKey) UnmarshalText(b []byte) error {
	parsed, err := ParseSlotKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
