// Package placement decides whether a proposed placement or move is legal
// and which store mutation it turns into. Everything here is pure.
package placement

import (
	"fmt"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/projection"
	"meal-scheduler/internal/schedule"
)

// MaxPerSlot is the hard cap of placements in one (date, meal type) cell.
const MaxPerSlot = 3

// MaxSpanDays bounds how many days an edited placement may cover.
const MaxSpanDays = 366

// Reason explains a rejection.
type Reason int

const (
	// NoOp means a placement was dropped onto its own slot. Callers issue
	// nothing and show nothing.
	NoOp Reason = iota + 1
	DuplicateRecipe
	SlotFull
	InvalidRange
	RangeTooLong
)

func (r Reason) String() string {
	switch r {
	case NoOp:
		return "no_op"
	case DuplicateRecipe:
		return "duplicate_recipe"
	case SlotFull:
		return "slot_full"
	case InvalidRange:
		return "invalid_range"
	case RangeTooLong:
		return "range_too_long"
	default:
		return "unknown"
	}
}

// Proposal is a candidate placement change. SourcePlacementID is zero for
// a recipe dropped from the catalog; Source is the moved placement's
// current slot and is nil for new placements.
type Proposal struct {
	RecipeID          int64
	RecipeTitle       string
	SourcePlacementID int64
	Source            *calendar.SlotKey
	Target            calendar.SlotKey
}

// IsMove reports whether the proposal moves an existing placement.
func (p Proposal) IsMove() bool {
	return p.SourcePlacementID != 0
}

// Decision is Accept(operation) or Reject(reason).
type Decision struct {
	Accepted  bool
	Operation Operation
	Reason    Reason
	// Subject names the recipe in rejection messages.
	Subject string
	// Slot is the cell a capacity or duplicate rejection was raised for.
	Slot calendar.SlotKey
}

// Accept wraps op.
func Accept(op Operation) Decision {
	return Decision{Accepted: true, Operation: op}
}

// Reject builds a rejection for slot.
func Reject(reason Reason, subject string, slot calendar.SlotKey) Decision {
	return Decision{Reason: reason, Subject: subject, Slot: slot}
}

// Message is the user-facing text of a rejection. NoOp and accepted
// decisions have none.
func (d Decision) Message() string {
	if d.Accepted {
		return ""
	}
	switch d.Reason {
	case DuplicateRecipe:
		return fmt.Sprintf("%s is already scheduled for this meal", d.Subject)
	case SlotFull:
		return fmt.Sprintf("You can schedule up to %d recipes per meal", MaxPerSlot)
	case InvalidRange:
		return "End date must not be before start date"
	case RangeTooLong:
		return fmt.Sprintf("A recipe can be scheduled for at most %d days at once", MaxSpanDays)
	default:
		return ""
	}
}

// Evaluate applies the placement rules to p against the current occupants
// of p.Target. The placement being moved is excluded from occupants before
// any rule runs.
func Evaluate(p Proposal, occupants []schedule.Schedule) Decision {
	if p.IsMove() && p.Source != nil && *p.Source == p.Target {
		return Reject(NoOp, p.RecipeTitle, p.Target)
	}

	others := withoutPlacement(occupants, p.SourcePlacementID)
	if decision, ok := checkSlot(p.RecipeID, p.RecipeTitle, p.Target, others); !ok {
		return decision
	}

	if p.IsMove() {
		return Accept(MoveOperation{Placement: p.SourcePlacementID, RecipeID: p.RecipeID, Target: p.Target})
	}
	return Accept(CreateOperation{RecipeID: p.RecipeID, Target: p.Target})
}

// EvaluateEdit validates an edit of an existing placement. occupants is
// asked for every slot the edited placement would cover; current is
// excluded from each answer. Notes-only edits are always accepted.
func EvaluateEdit(current schedule.Schedule, req schedule.UpdateRequest, occupants func(calendar.SlotKey) []schedule.Schedule) Decision {
	next := req.Apply(current)
	mealType := projection.MealTypeOf(next)
	if next.EndDate.Before(next.StartDate) {
		return Reject(InvalidRange, current.Title(), calendar.NewSlotKey(next.StartDate, mealType))
	}

	op := EditOperation{Placement: current.ID, Request: req}
	if req.StartDate == nil && req.EndDate == nil && req.MealType == nil {
		return Accept(op)
	}
	if !WithinSpan(next) {
		return Reject(RangeTooLong, current.Title(), calendar.NewSlotKey(next.StartDate, mealType))
	}

	for d := next.StartDate; !d.After(next.EndDate); d = d.AddDays(1) {
		key := calendar.NewSlotKey(d, mealType)
		others := withoutPlacement(occupants(key), current.ID)
		if decision, ok := checkSlot(current.RecipeID, current.Title(), key, others); !ok {
			return decision
		}
	}
	return Accept(op)
}

// WithinSpan reports whether s covers at most MaxSpanDays days.
func WithinSpan(s schedule.Schedule) bool {
	return s.EndDate.DaysSince(s.StartDate) < MaxSpanDays
}

func checkSlot(recipeID int64, title string, key calendar.SlotKey, others []schedule.Schedule) (Decision, bool) {
	for _, o := range others {
		if o.RecipeID == recipeID {
			return Reject(DuplicateRecipe, title, key), false
		}
	}
	if len(others) >= MaxPerSlot {
		return Reject(SlotFull, title, key), false
	}
	return Decision{}, true
}

func withoutPlacement(occupants []schedule.Schedule, id int64) []schedule.Schedule {
	if id == 0 {
		return occupants
	}
	out := make([]schedule.Schedule, 0, len(occupants))
	for _, o := range occupants {
		if o.ID != id {
			out = append(out, o)
		}
	}
	return out
}
