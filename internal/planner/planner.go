// Package planner coordinates one user's calendar session: the visible
// week, the last authoritative snapshot, drag gestures and the mutations
// they produce.
package planner

import (
	"errors"
	"sort"
	"sync"
	"time"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/drag"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/placement"
	"meal-scheduler/internal/projection"
	"meal-scheduler/internal/schedule"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
)

// ErrNoSuchPlacement is returned when an id is not in the current snapshot.
var ErrNoSuchPlacement = errors.New("placement is not on the current calendar")

const defaultMutationTimeout = 30 * time.Second

// Level of a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a transient message for the user.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Pending is a mutation that has been issued and not yet settled. It is
// shown to the user but never counted by the placement rules.
type Pending struct {
	ID          uint64            `json:"id"`
	Kind        placement.Kind    `json:"kind"`
	PlacementID int64             `json:"placement_id,omitempty"`
	RecipeID    int64             `json:"recipe_id,omitempty"`
	Target      *calendar.SlotKey `json:"target,omitempty"`
}

// Recorder persists mutation outcomes.
type Recorder interface {
	Record(m metrics.MutationMetric) error
}

// Option configures a Planner.
type Option func(*Planner)

// WithMealTypes sets the initial meal-type filter.
func WithMealTypes(mealTypes []calendar.MealType) Option {
	return func(p *Planner) {
		if len(mealTypes) > 0 {
			p.filter = append([]calendar.MealType(nil), mealTypes...)
		}
	}
}

// WithClock replaces time.Now for week navigation and notices.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// WithMutationTimeout bounds every store mutation and its reconciliation.
func WithMutationTimeout(d time.Duration) Option {
	return func(p *Planner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// DefaultMealTypes is the filter a new session starts with.
func DefaultMealTypes() []calendar.MealType {
	return []calendar.MealType{calendar.Breakfast, calendar.Lunch, calendar.Dinner}
}

// Planner is the top-level coordinator of a session. It is safe for
// concurrent use; store calls are never made while its lock is held.
type Planner struct {
	store    schedule.Store
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
	timeout  time.Duration

	mu        sync.Mutex
	weekStart civil.Date
	filter    []calendar.MealType

	// snapshot is the last applied fetch, for snapshotWeek.
	snapshot     []schedule.Schedule
	snapshotWeek civil.Date
	full         projection.Week
	loaded       bool
	fetchErr     error
	fetchIssued  uint64
	fetchApplied uint64

	pendingSeq uint64
	pending    map[uint64]Pending
	notices    []Notice
	machine    *drag.Machine

	inflight sync.WaitGroup
}

// New creates a planner showing the current week. Call Load before the
// first gesture. recorder may be nil.
func New(store schedule.Store, recorder Recorder, logger *zap.Logger, opts ...Option) *Planner {
	p := &Planner{
		store:    store,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		timeout:  defaultMutationTimeout,
		filter:   DefaultMealTypes(),
		pending:  make(map[uint64]Pending),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.weekStart = calendar.WeekStartOf(p.now())
	g := gesture{p: p}
	p.machine = drag.NewMachine(g, g, g, logger)
	return p
}

// WeekStart of the visible week.
func (p *Planner) WeekStart() civil.Date {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.weekStart
}

// Filter returns the meal types currently shown.
func (p *Planner) Filter() []calendar.MealType {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]calendar.MealType(nil), p.filter...)
}

// SetFilter changes the meal types shown. It does not affect the rules,
// which always see every meal type.
func (p *Planner) SetFilter(mealTypes []calendar.MealType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter = append([]calendar.MealType(nil), mealTypes...)
}

// ToggleMealType adds m to the filter or removes it.
func (p *Planner) ToggleMealType(m calendar.MealType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, f := range p.filter {
		if f == m {
			p.filter = append(p.filter[:i:i], p.filter[i+1:]...)
			return
		}
	}
	p.filter = append(p.filter, m)
}

// Dispatch feeds a gesture intent to the drag machine.
func (p *Planner) Dispatch(intent drag.Intent) drag.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.machine.Dispatch(intent)
}

// DragState is the current gesture.
func (p *Planner) DragState() drag.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.machine.State()
}

// Placement looks id up in the current snapshot.
func (p *Planner) Placement(id int64) (schedule.Schedule, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.findLocked(id)
}

// Notices drains the queued notices, oldest first.
func (p *Planner) Notices() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.notices
	p.notices = nil
	return out
}

// PendingMutations lists unsettled mutations in issue order.
func (p *Planner) PendingMutations() []Pending {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pendingLocked()
}

// Wait blocks until every issued mutation has settled and reconciled.
func (p *Planner) Wait() {
	p.inflight.Wait()
}

func (p *Planner) pendingLocked() []Pending {
	out := make([]Pending, 0, len(p.pending))
	for _, pm := range p.pending {
		out = append(out, pm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *Planner) findLocked(id int64) (schedule.Schedule, bool) {
	for _, s := range p.snapshot {
		if s.ID == id {
			return s, true
		}
	}
	return schedule.Schedule{}, false
}

// readyLocked reports whether the snapshot describes the visible week.
func (p *Planner) readyLocked() bool {
	return p.loaded && p.fetchErr == nil && p.snapshotWeek == p.weekStart
}

func (p *Planner) noticeLocked(level Level, message string) {
	p.notices = append(p.notices, Notice{Level: level, Message: message, At: p.now()})
}

// gesture adapts the planner to the drag machine. Its methods run inside
// Dispatch, with p.mu held.
type gesture struct {
	p *Planner
}

func (g gesture) InScope(key calendar.SlotKey) bool {
	return g.p.readyLocked() && g.p.full.InScope(key)
}

func (g gesture) Occupants(key calendar.SlotKey) []schedule.Schedule {
	return g.p.full.Occupants(key)
}

func (g gesture) Submit(op placement.Operation) {
	g.p.submitLocked(op)
}

func (g gesture) Warn(message string) {
	g.p.noticeLocked(LevelWarning, message)
}
