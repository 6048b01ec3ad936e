package placement

import (
	"reflect"
	"testing"
	"time"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/schedule"

	"cloud.google.com/go/civil"
)

func date(day int) civil.Date {
	return civil.Date{Year: 2024, Month: time.June, Day: day}
}

func placed(id, recipeID int64, start, end civil.Date, m calendar.MealType) schedule.Schedule {
	return schedule.Schedule{ID: id, RecipeID: recipeID, StartDate: start, EndDate: end, MealType: m}
}

const (
	recipeA int64 = iota + 1
	recipeB
	recipeC
	recipeD
)

func TestEvaluateNewPlacement(t *testing.T) {
	target := calendar.NewSlotKey(date(3), calendar.Dinner)

	t.Run("IntoPartlyFilledSlot", func(t *testing.T) {
		occupants := []schedule.Schedule{
			placed(1, recipeA, date(3), date(3), calendar.Dinner),
			placed(2, recipeB, date(3), date(3), calendar.Dinner),
		}
		d := Evaluate(Proposal{RecipeID: recipeC, RecipeTitle: "C", Target: target}, occupants)
		if !d.Accepted {
			t.Fatalf("Expected Accept, got Reject(%s)", d.Reason)
		}
		op, ok := d.Operation.(CreateOperation)
		if !ok {
			t.Fatalf("Expected CreateOperation, got %T", d.Operation)
		}
		req := op.Request()
		if req.StartDate != date(3) || req.EndDate != date(3) || req.MealType != calendar.Dinner {
			t.Errorf("Unexpected create request %+v", req)
		}
	})

	t.Run("SlotFull", func(t *testing.T) {
		occupants := []schedule.Schedule{
			placed(1, recipeA, date(3), date(3), calendar.Dinner),
			placed(2, recipeB, date(3), date(3), calendar.Dinner),
			placed(3, recipeC, date(3), date(3), calendar.Dinner),
		}
		d := Evaluate(Proposal{RecipeID: recipeD, RecipeTitle: "D", Target: target}, occupants)
		if d.Accepted || d.Reason != SlotFull {
			t.Fatalf("Expected Reject(SlotFull), got %+v", d)
		}
		if d.Message() != "You can schedule up to 3 recipes per meal" {
			t.Errorf("Unexpected message %q", d.Message())
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		occupants := []schedule.Schedule{placed(1, recipeA, date(3), date(3), calendar.Dinner)}
		d := Evaluate(Proposal{RecipeID: recipeA, RecipeTitle: "Lasagna", Target: target}, occupants)
		if d.Accepted || d.Reason != DuplicateRecipe {
			t.Fatalf("Expected Reject(DuplicateRecipe), got %+v", d)
		}
		if d.Message() != "Lasagna is already scheduled for this meal" {
			t.Errorf("Unexpected message %q", d.Message())
		}
	})

	t.Run("DuplicateBeforeCapacity", func(t *testing.T) {
		occupants := []schedule.Schedule{
			placed(1, recipeA, date(3), date(3), calendar.Dinner),
			placed(2, recipeB, date(3), date(3), calendar.Dinner),
			placed(3, recipeC, date(3), date(3), calendar.Dinner),
		}
		d := Evaluate(Proposal{RecipeID: recipeA, Target: target}, occupants)
		if d.Reason != DuplicateRecipe {
			t.Errorf("Expected DuplicateRecipe to win over SlotFull, got %s", d.Reason)
		}
	})
}

func TestEvaluateMove(t *testing.T) {
	p := placed(7, recipeA, date(3), date(3), calendar.Lunch)
	source := calendar.NewSlotKey(date(3), calendar.Lunch)

	t.Run("SelfMoveIsNoOp", func(t *testing.T) {
		d := Evaluate(Proposal{RecipeID: recipeA, SourcePlacementID: p.ID, Source: &source, Target: source}, []schedule.Schedule{p})
		if d.Accepted || d.Reason != NoOp {
			t.Fatalf("Expected Reject(NoOp), got %+v", d)
		}
		if d.Message() != "" {
			t.Errorf("Expected no message for NoOp, got %q", d.Message())
		}
	})

	t.Run("ToAnotherDay", func(t *testing.T) {
		target := calendar.NewSlotKey(date(4), calendar.Lunch)
		occupants := []schedule.Schedule{placed(8, recipeB, date(4), date(4), calendar.Lunch)}
		d := Evaluate(Proposal{RecipeID: recipeA, SourcePlacementID: p.ID, Source: &source, Target: target}, occupants)
		if !d.Accepted {
			t.Fatalf("Expected Accept, got %+v", d)
		}
		op, ok := d.Operation.(MoveOperation)
		if !ok {
			t.Fatalf("Expected MoveOperation, got %T", d.Operation)
		}
		req := op.Request()
		if op.PlacementID() != 7 || *req.StartDate != date(4) || *req.EndDate != date(4) || *req.MealType != calendar.Lunch {
			t.Errorf("Unexpected move %+v", op)
		}
		if req.Notes != nil {
			t.Error("Expected notes to be left untouched")
		}
	})

	t.Run("SelfExclusion", func(t *testing.T) {
		// A three-day lunch moved to its second day: it already occupies
		// the target, which must not count as a duplicate or toward capacity.
		span := placed(9, recipeA, date(3), date(5), calendar.Lunch)
		target := calendar.NewSlotKey(date(4), calendar.Lunch)
		occupants := []schedule.Schedule{
			span,
			placed(10, recipeB, date(4), date(4), calendar.Lunch),
			placed(11, recipeC, date(4), date(4), calendar.Lunch),
		}
		d := Evaluate(Proposal{RecipeID: recipeA, SourcePlacementID: span.ID, Source: &source, Target: target}, occupants)
		if !d.Accepted {
			t.Fatalf("Expected Accept, got %+v", d)
		}
	})

	t.Run("MealTypeChangeIsNotNoOp", func(t *testing.T) {
		target := calendar.NewSlotKey(date(3), calendar.Dinner)
		d := Evaluate(Proposal{RecipeID: recipeA, SourcePlacementID: p.ID, Source: &source, Target: target}, nil)
		if !d.Accepted {
			t.Fatalf("Expected Accept, got %+v", d)
		}
	})

	t.Run("FullTargetRejected", func(t *testing.T) {
		target := calendar.NewSlotKey(date(5), calendar.Lunch)
		occupants := []schedule.Schedule{
			placed(20, recipeB, date(5), date(5), calendar.Lunch),
			placed(21, recipeC, date(5), date(5), calendar.Lunch),
			placed(22, recipeD, date(5), date(5), calendar.Lunch),
		}
		d := Evaluate(Proposal{RecipeID: recipeA, SourcePlacementID: p.ID, Source: &source, Target: target}, occupants)
		if d.Reason != SlotFull {
			t.Errorf("Expected SlotFull, got %s", d.Reason)
		}
	})
}

func TestEvaluateIsPure(t *testing.T) {
	target := calendar.NewSlotKey(date(3), calendar.Dinner)
	occupants := []schedule.Schedule{
		placed(1, recipeA, date(3), date(3), calendar.Dinner),
		placed(2, recipeB, date(3), date(3), calendar.Dinner),
	}
	before := append([]schedule.Schedule(nil), occupants...)
	p := Proposal{RecipeID: recipeC, SourcePlacementID: 1, Target: target}

	first := Evaluate(p, occupants)
	second := Evaluate(p, occupants)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical decisions, got %+v and %+v", first, second)
	}
	if !reflect.DeepEqual(before, occupants) {
		t.Error("Expected occupants to be left untouched")
	}
}

func TestEvaluateEdit(t *testing.T) {
	current := placed(1, recipeA, date(3), date(3), calendar.Dinner)
	slots := map[calendar.SlotKey][]schedule.Schedule{
		calendar.NewSlotKey(date(3), calendar.Dinner): {current},
		calendar.NewSlotKey(date(4), calendar.Dinner): {
			placed(2, recipeB, date(4), date(4), calendar.Dinner),
			placed(3, recipeC, date(4), date(4), calendar.Dinner),
			placed(4, recipeD, date(4), date(4), calendar.Dinner),
		},
		calendar.NewSlotKey(date(3), calendar.Lunch): {placed(5, recipeA, date(3), date(3), calendar.Lunch)},
	}
	occupants := func(k calendar.SlotKey) []schedule.Schedule { return slots[k] }

	t.Run("NotesOnly", func(t *testing.T) {
		notes := "double portion"
		d := EvaluateEdit(current, schedule.UpdateRequest{Notes: &notes}, occupants)
		if !d.Accepted {
			t.Fatalf("Expected Accept, got %+v", d)
		}
		if d.Operation.Kind() != KindEdit || d.Operation.PlacementID() != current.ID {
			t.Errorf("Expected an edit of placement %d, got %+v", current.ID, d.Operation)
		}
	})

	t.Run("InvalidRange", func(t *testing.T) {
		end := date(2)
		d := EvaluateEdit(current, schedule.UpdateRequest{EndDate: &end}, occupants)
		if d.Reason != InvalidRange {
			t.Errorf("Expected InvalidRange, got %+v", d)
		}
	})

	t.Run("SpanTooLong", func(t *testing.T) {
		var calls int
		counting := func(k calendar.SlotKey) []schedule.Schedule {
			calls++
			return slots[k]
		}
		end := civil.Date{Year: 9999, Month: time.December, Day: 31}
		d := EvaluateEdit(current, schedule.UpdateRequest{EndDate: &end}, counting)
		if d.Reason != RangeTooLong {
			t.Errorf("Expected RangeTooLong, got %+v", d)
		}
		if calls != 0 {
			t.Errorf("Expected no slot lookups, got %d", calls)
		}
	})

	t.Run("ExtendIntoFullSlot", func(t *testing.T) {
		end := date(4)
		d := EvaluateEdit(current, schedule.UpdateRequest{EndDate: &end}, occupants)
		if d.Reason != SlotFull || d.Slot.Date != date(4) {
			t.Errorf("Expected SlotFull on 06-04, got %+v", d)
		}
	})

	t.Run("ChangeMealTypeIntoDuplicate", func(t *testing.T) {
		lunch := calendar.Lunch
		d := EvaluateEdit(current, schedule.UpdateRequest{MealType: &lunch}, occupants)
		if d.Reason != DuplicateRecipe {
			t.Errorf("Expected DuplicateRecipe, got %+v", d)
		}
	})

	t.Run("ExtendIntoFreeDays", func(t *testing.T) {
		start, end := date(2), date(3)
		d := EvaluateEdit(current, schedule.UpdateRequest{StartDate: &start, EndDate: &end}, occupants)
		if !d.Accepted {
			t.Errorf("Expected Accept, got %+v", d)
		}
	})
}
