package drag

import (
	"errors"
	"testing"
	"time"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/recipe"

	"cloud.google.com/go/civil"
)

var (
	soup  = recipe.Recipe{ID: 1, Title: "Soup", CookingTime: 30, Servings: 2}
	cellA = calendar.NewSlotKey(civil.Date{Year: 2024, Month: time.June, Day: 3}, calendar.Dinner)
	cellB = calendar.NewSlotKey(civil.Date{Year: 2024, Month: time.June, Day: 4}, calendar.Lunch)
)

func TestReduce(t *testing.T) {
	dragging := Reduce(State{}, Begin{Payload: FromRecipe(soup)})
	hovering := Reduce(dragging, Enter{Target: cellA})

	tests := []struct {
		name   string
		from   State
		intent Intent
		want   Phase
	}{
		{"BeginFromIdle", State{}, Begin{Payload: FromRecipe(soup)}, Dragging},
		{"EnterWhileIdleIgnored", State{}, Enter{Target: cellA}, Idle},
		{"DropWhileIdleIgnored", State{}, Drop{}, Idle},
		{"AbortWhileIdleIgnored", State{}, Abort{}, Idle},
		{"BeginWhileDraggingIgnored", dragging, Begin{Payload: FromRecipe(recipe.Recipe{ID: 2})}, Dragging},
		{"EnterFromDragging", dragging, Enter{Target: cellA}, Hovering},
		{"LeaveWhileDraggingIgnored", dragging, Leave{}, Dragging},
		{"DropOutsideTarget", dragging, Drop{}, Cancelled},
		{"AbortWhileDragging", dragging, Abort{}, Cancelled},
		{"ReEnter", hovering, Enter{Target: cellB}, Hovering},
		{"LeaveCell", hovering, Leave{}, Dragging},
		{"DropOnCell", hovering, Drop{}, Committing},
		{"AbortWhileHovering", hovering, Abort{}, Cancelled},
		{"BeginWhileHoveringIgnored", hovering, Begin{Payload: FromRecipe(recipe.Recipe{ID: 2})}, Hovering},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce(tt.from, tt.intent)
			if got.Phase != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got.Phase)
			}
		})
	}
}

func TestReduceTracksTarget(t *testing.T) {
	s := Reduce(State{}, Begin{Payload: FromRecipe(soup)})
	s = Reduce(s, Enter{Target: cellA})
	s = Reduce(s, Enter{Target: cellB})
	if s.Target == nil || *s.Target != cellB {
		t.Fatalf("Expected the last entered cell, got %v", s.Target)
	}

	s = Reduce(s, Drop{})
	if s.Phase != Committing || *s.Target != cellB {
		t.Errorf("Expected Committing on %s, got %s on %v", cellB, s.Phase, s.Target)
	}
	if s.Payload.Recipe.ID != soup.ID {
		t.Error("Expected the payload to travel to the drop")
	}

	s = Reduce(Reduce(Reduce(State{}, Begin{Payload: FromRecipe(soup)}), Enter{Target: cellA}), Leave{})
	if s.Target != nil {
		t.Error("Expected leaving a cell to clear the target")
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	hovering := Reduce(Reduce(State{}, Begin{Payload: FromRecipe(soup)}), Enter{Target: cellA})
	_ = Reduce(hovering, Enter{Target: cellB})
	if *hovering.Target != cellA {
		t.Error("Expected the previous state to keep its target")
	}
}

func TestReduceMalformedPayload(t *testing.T) {
	for _, data := range []string{`not json`, `{}`, `{"type":"schedule"}`, `[1,2]`, `null`} {
		got := Reduce(State{}, BeginRaw{Data: []byte(data)})
		if got.Phase != Cancelled {
			t.Errorf("%s: Expected Cancelled, got %s", data, got.Phase)
		}
		if !errors.Is(got.Err, ErrMalformedPayload) {
			t.Errorf("%s: Expected ErrMalformedPayload, got %v", data, got.Err)
		}
	}
}
