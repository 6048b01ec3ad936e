package placement

import (
	"context"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/schedule"
)

// Kind names an operation for notices and metrics.
type Kind string

const (
	KindCreate Kind = "create"
	KindMove   Kind = "move"
	KindEdit   Kind = "edit"
	KindDelete Kind = "delete"
)

// Operation is an accepted change, ready to be sent to the store.
type Operation interface {
	Kind() Kind
	// PlacementID is the affected placement, zero for creates.
	PlacementID() int64
	// Execute issues the store call.
	Execute(ctx context.Context, store schedule.Store) error
	// Success and Failure are the user-facing outcome messages.
	Success() string
	Failure(cause error) string
}

// CreateOperation places a catalog recipe on a single day.
type CreateOperation struct {
	RecipeID int64
	Target   calendar.SlotKey
}

// Request is the store body: start and end are both the target date.
func (o CreateOperation) Request() schedule.CreateRequest {
	return schedule.CreateRequest{
		StartDate: o.Target.Date,
		EndDate:   o.Target.Date,
		MealType:  o.Target.MealType,
	}
}

func (o CreateOperation) Kind() Kind         { return KindCreate }
func (o CreateOperation) PlacementID() int64 { return 0 }

func (o CreateOperation) Execute(ctx context.Context, store schedule.Store) error {
	_, err := store.Create(ctx, o.RecipeID, o.Request())
	return err
}

func (o CreateOperation) Success() string { return "Recipe added to your schedule" }

func (o CreateOperation) Failure(cause error) string {
	return "Error adding recipe: " + cause.Error()
}

// MoveOperation re-anchors an existing placement. A moved placement
// collapses to the target day; multi-day ranges are changed through edits.
type MoveOperation struct {
	Placement int64
	RecipeID  int64
	Target    calendar.SlotKey
}

// Request is the partial update sent to the store.
func (o MoveOperation) Request() schedule.UpdateRequest {
	d := o.Target.Date
	end := o.Target.Date
	m := o.Target.MealType
	return schedule.UpdateRequest{StartDate: &d, EndDate: &end, MealType: &m}
}

func (o MoveOperation) Kind() Kind         { return KindMove }
func (o MoveOperation) PlacementID() int64 { return o.Placement }

func (o MoveOperation) Execute(ctx context.Context, store schedule.Store) error {
	_, err := store.Update(ctx, o.Placement, o.Request())
	return err
}

func (o MoveOperation) Success() string { return "Schedule updated successfully" }

func (o MoveOperation) Failure(cause error) string {
	return "Error updating schedule: " + cause.Error()
}

// EditOperation forwards a validated partial update.
type EditOperation struct {
	Placement int64
	Request   schedule.UpdateRequest
}

func (o EditOperation) Kind() Kind         { return KindEdit }
func (o EditOperation) PlacementID() int64 { return o.Placement }

func (o EditOperation) Execute(ctx context.Context, store schedule.Store) error {
	_, err := store.Update(ctx, o.Placement, o.Request)
	return err
}

func (o EditOperation) Success() string { return "Schedule updated successfully" }

func (o EditOperation) Failure(cause error) string {
	return "Error updating schedule: " + cause.Error()
}

// DeleteOperation removes a placement. It needs no rule evaluation.
type DeleteOperation struct {
	Placement int64
}

func (o DeleteOperation) Kind() Kind         { return KindDelete }
func (o DeleteOperation) PlacementID() int64 { return o.Placement }

func (o DeleteOperation) Execute(ctx context.Context, store schedule.Store) error {
	return store.Delete(ctx, o.Placement)
}

func (o DeleteOperation) Success() string { return "Recipe removed from your schedule" }

func (o DeleteOperation) Failure(cause error) string {
	return "Error removing recipe: " + cause.Error()
}
