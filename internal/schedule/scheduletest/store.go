// Package scheduletest provides an in-memory schedule.Store for tests.
package scheduletest

import (
	"context"
	"sort"
	"sync"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/projection"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/schedule"

	"cloud.google.com/go/civil"
)

// Operation names used for call counting, failures and hooks.
const (
	OpFetch  = "fetch"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Store keeps placements in memory and expands the recipe of every row it
// returns. Like the real store it enforces no capacity or duplicate rules.
type Store struct {
	mu       sync.Mutex
	nextID   int64
	rows     map[int64]schedule.Schedule
	recipes  map[int64]recipe.Recipe
	calls    map[string]int
	failures map[string]error
	hooks    map[string]func(ctx context.Context)
}

// NewStore seeds the store with rows. Ids of later creates start after the
// highest seeded id.
func NewStore(recipes []recipe.Recipe, rows ...schedule.Schedule) *Store {
	s := &Store{
		rows:     make(map[int64]schedule.Schedule, len(rows)),
		recipes:  recipe.Index(recipes),
		calls:    make(map[string]int),
		failures: make(map[string]error),
		hooks:    make(map[string]func(ctx context.Context)),
	}
	for _, row := range rows {
		s.rows[row.ID] = row
		if row.ID > s.nextID {
			s.nextID = row.ID
		}
	}
	return s
}

// FailWith makes every later call of op return err. A nil err clears it.
func (s *Store) FailWith(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// OnCall runs fn at the start of every call of op, before the store lock is
// taken. Tests use it to block a call or to interleave work.
func (s *Store) OnCall(op string, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[op] = fn
}

// Calls returns how many times op was invoked, failed calls included.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Mutations is the number of create, update and delete calls.
func (s *Store) Mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[OpCreate] + s.calls[OpUpdate] + s.calls[OpDelete]
}

// Rows returns every stored placement ordered by id.
func (s *Store) Rows() []schedule.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(schedule.Schedule) bool { return true })
}

// Get returns the stored placement with id.
func (s *Store) Get(id int64) (schedule.Schedule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	return s.expand(row), ok
}

func (s *Store) FetchRange(ctx context.Context, start, end civil.Date) ([]schedule.Schedule, error) {
	if err := s.begin(ctx, OpFetch); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, schedule.ErrInvalidRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(row schedule.Schedule) bool {
		return !row.EndDate.Before(start) && !row.StartDate.After(end)
	}), nil
}

func (s *Store) Create(ctx context.Context, recipeID int64, req schedule.CreateRequest) (*schedule.Schedule, error) {
	if err := s.begin(ctx, OpCreate); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	row := schedule.Schedule{
		ID:        s.nextID,
		RecipeID:  recipeID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		MealType:  req.MealType,
		Notes:     req.Notes,
	}
	s.rows[row.ID] = row
	created := s.expand(row)
	return &created, nil
}

func (s *Store) Update(ctx context.Context, id int64, req schedule.UpdateRequest) (*schedule.Schedule, error) {
	if err := s.begin(ctx, OpUpdate); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, schedule.ErrNotFound
	}
	row = req.Apply(row)
	if row.EndDate.Before(row.StartDate) {
		return nil, schedule.ErrInvalidRange
	}
	s.rows[id] = row
	updated := s.expand(row)
	return &updated, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	if err := s.begin(ctx, OpDelete); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

// Occupants lists the stored placements covering the slot.
func (s *Store) Occupants(key calendar.SlotKey) []schedule.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return projection.OccupantsOf(s.sorted(func(schedule.Schedule) bool { return true }), key)
}

func (s *Store) begin(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	hook := s.hooks[op]
	s.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[op]
}

func (s *Store) sorted(keep func(schedule.Schedule) bool) []schedule.Schedule {
	out := make([]schedule.Schedule, 0, len(s.rows))
	for _, row := range s.rows {
		if keep(row) {
			out = append(out, s.expand(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) expand(row schedule.Schedule) schedule.Schedule {
	if r, ok := s.recipes[row.RecipeID]; ok {
		rc := r
		row.Recipe = &rc
	}
	return row
}
