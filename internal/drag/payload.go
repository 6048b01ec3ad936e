package drag

import (
	"encoding/json"
	"errors"
	"fmt"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/placement"
	"meal-scheduler/internal/projection"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/schedule"
)

// ErrMalformedPayload is returned for drag data that cannot come from a
// real drag source.
var ErrMalformedPayload = errors.New("malformed drag payload")

// Kind is the drag source.
type Kind int

const (
	NewFromCatalog Kind = iota + 1
	MoveExisting
)

func (k Kind) String() string {
	switch k {
	case NewFromCatalog:
		return "new_from_catalog"
	case MoveExisting:
		return "move_existing"
	default:
		return "unknown"
	}
}

// Payload is the snapshot taken when a gesture starts. It owns its data:
// later changes to the catalog or the calendar do not reach it.
type Payload struct {
	Kind     Kind
	Recipe   recipe.Recipe
	Schedule schedule.Schedule
}

// FromRecipe snapshots a catalog recipe.
func FromRecipe(r recipe.Recipe) Payload {
	return Payload{Kind: NewFromCatalog, Recipe: r}
}

// FromSchedule snapshots an existing placement.
func FromSchedule(s schedule.Schedule) Payload {
	if s.Notes != nil {
		notes := *s.Notes
		s.Notes = &notes
	}
	if s.Recipe != nil {
		r := *s.Recipe
		s.Recipe = &r
	}
	return Payload{Kind: MoveExisting, Schedule: s}
}

// Title of the dragged recipe.
func (p Payload) Title() string {
	if p.Kind == MoveExisting {
		return p.Schedule.Title()
	}
	return p.Recipe.Title
}

// Proposal builds the rule engine input for dropping p on target.
func (p Payload) Proposal(target calendar.SlotKey) placement.Proposal {
	if p.Kind == MoveExisting {
		source := projection.CurrentSlot(p.Schedule)
		return placement.Proposal{
			RecipeID:          p.Schedule.RecipeID,
			RecipeTitle:       p.Schedule.Title(),
			SourcePlacementID: p.Schedule.ID,
			Source:            &source,
			Target:            target,
		}
	}
	return placement.Proposal{
		RecipeID:    p.Recipe.ID,
		RecipeTitle: p.Recipe.Title,
		Target:      target,
	}
}

const scheduleEnvelopeType = "schedule"

type scheduleEnvelope struct {
	Type     string             `json:"type"`
	Schedule *schedule.Schedule `json:"schedule,omitempty"`
}

// EncodePayload renders the drag transfer data: an envelope of type
// "schedule" for moves, the bare recipe for catalog drags.
func EncodePayload(p Payload) ([]byte, error) {
	switch p.Kind {
	case MoveExisting:
		s := p.Schedule
		return json.Marshal(scheduleEnvelope{Type: scheduleEnvelopeType, Schedule: &s})
	case NewFromCatalog:
		return json.Marshal(p.Recipe)
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformedPayload, p.Kind)
	}
}

// DecodePayload is the inverse of EncodePayload. Data is a move only when
// its type field is exactly "schedule".
func DecodePayload(data []byte) (Payload, error) {
	var env scheduleEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if env.Type == scheduleEnvelopeType {
		if env.Schedule == nil || env.Schedule.ID == 0 || env.Schedule.RecipeID == 0 {
			return Payload{}, fmt.Errorf("%w: schedule envelope without a placement", ErrMalformedPayload)
		}
		return FromSchedule(*env.Schedule), nil
	}

	var r recipe.Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if r.ID == 0 {
		return Payload{}, fmt.Errorf("%w: recipe without id", ErrMalformedPayload)
	}
	return FromRecipe(r), nil
}
