// Package projection groups placements into calendar cells.
package projection

import (
	"iter"
	"sort"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/schedule"

	"cloud.google.com/go/civil"
)

// DefaultMealType is assumed for placements whose stored meal type is
// missing or unknown. Legacy rows predate meal types and were all dinners.
const DefaultMealType = calendar.Dinner

// MealTypeOf is the effective meal type of s. Every reader of a placement's
// meal type goes through here.
func MealTypeOf(s schedule.Schedule) calendar.MealType {
	if m, ok := calendar.ParseMealType(string(s.MealType)); ok {
		return m
	}
	return DefaultMealType
}

// Week is the grouping of placements by slot for a set of dates and meal
// types. Slots in scope with no placements are present and empty.
type Week struct {
	dates     []civil.Date
	mealTypes []calendar.MealType
	slots     map[calendar.SlotKey][]schedule.Schedule
}

// Project collects, for every date x meal type in scope, the placements
// covering that date under that meal type, ordered by id.
func Project(schedules []schedule.Schedule, dates iter.Seq[civil.Date], mealTypes []calendar.MealType) Week {
	w := Week{
		mealTypes: sortedMealTypes(mealTypes),
		slots:     make(map[calendar.SlotKey][]schedule.Schedule),
	}
	for d := range dates {
		w.dates = append(w.dates, d)
		for _, m := range w.mealTypes {
			w.slots[calendar.NewSlotKey(d, m)] = nil
		}
	}

	for _, s := range schedules {
		m := MealTypeOf(s)
		for _, d := range w.dates {
			if !calendar.Covers(s.StartDate, s.EndDate, d) {
				continue
			}
			key := calendar.NewSlotKey(d, m)
			if occupants, ok := w.slots[key]; ok {
				w.slots[key] = append(occupants, s)
			}
		}
	}

	for key, occupants := range w.slots {
		sort.SliceStable(occupants, func(i, j int) bool { return occupants[i].ID < occupants[j].ID })
		w.slots[key] = occupants
	}
	return w
}

func sortedMealTypes(mealTypes []calendar.MealType) []calendar.MealType {
	seen := make(map[calendar.MealType]bool, len(mealTypes))
	out := make([]calendar.MealType, 0, len(mealTypes))
	for _, m := range mealTypes {
		if !m.Valid() || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Dates in scope, in order.
func (w Week) Dates() []civil.Date {
	return append([]civil.Date(nil), w.dates...)
}

// MealTypes in scope, in display order.
func (w Week) MealTypes() []calendar.MealType {
	return append([]calendar.MealType(nil), w.mealTypes...)
}

// InScope reports whether key is one of the week's cells.
func (w Week) InScope(key calendar.SlotKey) bool {
	_, ok := w.slots[key]
	return ok
}

// Occupants of key, ordered by id. The slice is a copy.
func (w Week) Occupants(key calendar.SlotKey) []schedule.Schedule {
	return append([]schedule.Schedule(nil), w.slots[key]...)
}

// Count is the number of placements in key.
func (w Week) Count(key calendar.SlotKey) int {
	return len(w.slots[key])
}

// Keys lists every cell ordered by date, then meal type.
func (w Week) Keys() []calendar.SlotKey {
	keys := make([]calendar.SlotKey, 0, len(w.slots))
	for _, d := range w.dates {
		for _, m := range w.mealTypes {
			keys = append(keys, calendar.NewSlotKey(d, m))
		}
	}
	return keys
}

// Find returns the placement with id if it appears anywhere in the week.
func (w Week) Find(id int64) (schedule.Schedule, bool) {
	for _, occupants := range w.slots {
		for _, s := range occupants {
			if s.ID == id {
				return s, true
			}
		}
	}
	return schedule.Schedule{}, false
}

// CurrentSlot is the slot a placement is anchored at: its start date under
// its effective meal type. Move no-op detection compares against it.
func CurrentSlot(s schedule.Schedule) calendar.SlotKey {
	return calendar.NewSlotKey(s.StartDate, MealTypeOf(s))
}

// OccupantsOf projects a single slot straight from a schedule list. It is
// used when the slot lies outside the projected week.
func OccupantsOf(schedules []schedule.Schedule, key calendar.SlotKey) []schedule.Schedule {
	var out []schedule.Schedule
	for _, s := range schedules {
		if MealTypeOf(s) == key.MealType && calendar.Covers(s.StartDate, s.EndDate, key.Date) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
