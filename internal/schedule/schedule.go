// Package schedule defines the placement record and the Schedule Store
// contract the calendar consumes, with its REST implementation.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/storeapi"

	"cloud.google.com/go/civil"
)

// ErrNotFound is matched by errors.Is when the store answered 404.
var ErrNotFound = storeapi.ErrNotFound

// ErrInvalidRange is returned before any request when end precedes start.
var ErrInvalidRange = errors.New("end_date must not be before start_date")

// Schedule is one placement of a recipe on the calendar. It covers every
// date from StartDate to EndDate inclusive under a single meal type.
//
// MealType is kept exactly as the store sent it. Legacy rows may carry an
// empty or differently-cased value; use projection.MealTypeOf to read it.
type Schedule struct {
	ID        int64             `json:"id"`
	RecipeID  int64             `json:"recipe_id"`
	StartDate civil.Date        `json:"start_date"`
	EndDate   civil.Date        `json:"end_date"`
	MealType  calendar.MealType `json:"meal_type,omitempty"`
	Notes     *string           `json:"notes,omitempty"`
	Recipe    *recipe.Recipe    `json:"recipe,omitempty"`
}

// Title is the recipe title when the store expanded it.
func (s Schedule) Title() string {
	if s.Recipe != nil && s.Recipe.Title != "" {
		return s.Recipe.Title
	}
	return fmt.Sprintf("Recipe #%d", s.RecipeID)
}

// CreateRequest is the body of POST /schedule/recipe/{recipeId}.
type CreateRequest struct {
	StartDate civil.Date        `json:"start_date"`
	EndDate   civil.Date        `json:"end_date"`
	MealType  calendar.MealType `json:"meal_type,omitempty"`
	Notes     *string           `json:"notes,omitempty"`
}

// Validate checks the date range.
func (r CreateRequest) Validate() error {
	if r.EndDate.Before(r.StartDate) {
		return ErrInvalidRange
	}
	return nil
}

// UpdateRequest is a partial update; nil fields are left untouched.
type UpdateRequest struct {
	StartDate *civil.Date        `json:"start_date,omitempty"`
	EndDate   *civil.Date        `json:"end_date,omitempty"`
	MealType  *calendar.MealType `json:"meal_type,omitempty"`
	Notes     *string            `json:"notes,omitempty"`
}

// Validate checks the date range when both ends are supplied.
func (r UpdateRequest) Validate() error {
	if r.StartDate != nil && r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
		return ErrInvalidRange
	}
	return nil
}

// Apply returns s with the non-nil fields of r applied.
func (r UpdateRequest) Apply(s Schedule) Schedule {
	if r.StartDate != nil {
		s.StartDate = *r.StartDate
	}
	if r.EndDate != nil {
		s.EndDate = *r.EndDate
	}
	if r.MealType != nil {
		s.MealType = *r.MealType
	}
	if r.Notes != nil {
		notes := *r.Notes
		s.Notes = &notes
	}
	return s
}

// Store is the remote collaborator that owns placements. Calls may be issued
// concurrently for different ids and complete in any order.
type Store interface {
	// FetchRange returns every placement overlapping [start, end].
	FetchRange(ctx context.Context, start, end civil.Date) ([]Schedule, error)
	// Create persists a new placement and returns it with its assigned id.
	Create(ctx context.Context, recipeID int64, req CreateRequest) (*Schedule, error)
	// Update applies a partial update.
	Update(ctx context.Context, id int64, req UpdateRequest) (*Schedule, error)
	// Delete removes a placement. Deleting an unknown id succeeds.
	Delete(ctx context.Context, id int64) error
}
