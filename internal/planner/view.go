package planner

import (
	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/placement"
	"meal-scheduler/internal/projection"
	"meal-scheduler/internal/schedule"

	"cloud.google.com/go/civil"
)

// SlotView is one rendered cell.
type SlotView struct {
	Key        calendar.SlotKey    `json:"key"`
	Placements []schedule.Schedule `json:"placements"`
	Full       bool                `json:"full"`
}

// DragView describes the gesture in progress.
type DragView struct {
	Phase  string            `json:"phase"`
	Kind   string            `json:"kind,omitempty"`
	Title  string            `json:"title,omitempty"`
	Target *calendar.SlotKey `json:"target,omitempty"`
}

// View is everything a front end renders.
type View struct {
	WeekStart   civil.Date          `json:"week_start"`
	WeekEnd     civil.Date          `json:"week_end"`
	Dates       []civil.Date        `json:"dates"`
	MealTypes   []calendar.MealType `json:"meal_types"`
	Slots       []SlotView          `json:"slots"`
	Pending     []Pending           `json:"pending"`
	Loaded      bool                `json:"loaded"`
	Unavailable bool                `json:"unavailable"`
	Error       string              `json:"error,omitempty"`
	Drag        DragView            `json:"drag"`
}

// Slot returns the rendered cell for key.
func (v View) Slot(key calendar.SlotKey) (SlotView, bool) {
	for _, s := range v.Slots {
		if s.Key == key {
			return s, true
		}
	}
	return SlotView{}, false
}

// View projects the snapshot through the meal-type filter. Before the
// visible week has loaded the cells are present and empty.
func (p *Planner) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	var rows []schedule.Schedule
	current := p.loaded && p.snapshotWeek == p.weekStart
	if current {
		rows = p.snapshot
	}
	week := projection.Project(rows, calendar.WeekDates(p.weekStart), p.filter)

	v := View{
		WeekStart: p.weekStart,
		WeekEnd:   calendar.WeekEnd(p.weekStart),
		Dates:     week.Dates(),
		MealTypes: week.MealTypes(),
		Pending:   p.pendingLocked(),
		Loaded:    current,
	}
	if p.fetchErr != nil {
		v.Unavailable = true
		v.Error = p.fetchErr.Error()
	}
	for _, key := range week.Keys() {
		occupants := week.Occupants(key)
		if occupants == nil {
			occupants = []schedule.Schedule{}
		}
		v.Slots = append(v.Slots, SlotView{
			Key:        key,
			Placements: occupants,
			Full:       len(occupants) >= placement.MaxPerSlot,
		})
	}

	st := p.machine.State()
	v.Drag = DragView{Phase: st.Phase.String(), Target: st.Target}
	if st.Active() {
		v.Drag.Kind = st.Payload.Kind.String()
		v.Drag.Title = st.Payload.Title()
	}
	return v
}
