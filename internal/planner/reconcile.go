package planner

import (
	"context"
	"fmt"
	"time"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/placement"
	"meal-scheduler/internal/projection"
	"meal-scheduler/internal/schedule"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
)

// Load fetches the visible week and replaces the snapshot with the result.
// A response is dropped when a later fetch was already applied or the user
// has navigated to another week meanwhile. On failure the snapshot is left
// alone and the week is marked unavailable until a fetch succeeds.
func (p *Planner) Load(ctx context.Context) error {
	p.mu.Lock()
	p.fetchIssued++
	seq := p.fetchIssued
	start := p.weekStart
	p.mu.Unlock()

	rows, err := p.store.FetchRange(ctx, start, calendar.WeekEnd(start))

	p.mu.Lock()
	defer p.mu.Unlock()

	if seq < p.fetchApplied || start != p.weekStart {
		p.logger.Debug("discarding stale fetch", zap.Uint64("seq", seq), zap.Stringer("week", start))
		return nil
	}
	if err != nil {
		p.fetchErr = err
		p.logger.Warn("failed to load week", zap.Stringer("week", start), zap.Error(err))
		return fmt.Errorf("failed to load week of %s: %w", start, err)
	}

	p.snapshot = rows
	p.snapshotWeek = start
	p.full = projection.Project(rows, calendar.WeekDates(start), calendar.MealTypes())
	p.loaded = true
	p.fetchErr = nil
	p.fetchApplied = seq
	return nil
}

type cacheRefresher interface {
	Refresh(ctx context.Context)
}

// Retry drops any cached ranges and loads the visible week again.
func (p *Planner) Retry(ctx context.Context) error {
	if r, ok := p.store.(cacheRefresher); ok {
		r.Refresh(ctx)
	}
	return p.Load(ctx)
}

// GoTo shows the week containing d.
func (p *Planner) GoTo(ctx context.Context, d civil.Date) error {
	p.mu.Lock()
	p.weekStart = calendar.WeekStart(d)
	p.mu.Unlock()
	return p.Load(ctx)
}

// Next shows the following week.
func (p *Planner) Next(ctx context.Context) error {
	return p.shift(ctx, 1)
}

// Prev shows the previous week.
func (p *Planner) Prev(ctx context.Context) error {
	return p.shift(ctx, -1)
}

// Today shows the current week.
func (p *Planner) Today(ctx context.Context) error {
	if err := p.GoTo(ctx, civil.DateOf(p.now())); err != nil {
		return err
	}
	p.mu.Lock()
	p.noticeLocked(LevelSuccess, "Calendar updated to current week")
	p.mu.Unlock()
	return nil
}

func (p *Planner) shift(ctx context.Context, weeks int) error {
	p.mu.Lock()
	p.weekStart = calendar.ShiftWeeks(p.weekStart, weeks)
	p.mu.Unlock()
	return p.Load(ctx)
}

// Delete removes a placement. Like drops it is asynchronous; the outcome
// arrives as a notice.
func (p *Planner) Delete(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitLocked(placement.DeleteOperation{Placement: id})
}

// Edit changes the dates, meal type or notes of a placement in the current
// snapshot. The rules run against a fresh read of every slot the edited
// placement would cover, since those may lie outside the visible week.
func (p *Planner) Edit(ctx context.Context, id int64, req schedule.UpdateRequest) (placement.Decision, error) {
	p.mu.Lock()
	current, ok := p.findLocked(id)
	p.mu.Unlock()
	if !ok {
		return placement.Decision{}, ErrNoSuchPlacement
	}

	next := req.Apply(current)
	var rows []schedule.Schedule
	movesSlots := req.StartDate != nil || req.EndDate != nil || req.MealType != nil
	if movesSlots && !next.EndDate.Before(next.StartDate) && placement.WithinSpan(next) {
		var err error
		rows, err = p.store.FetchRange(ctx, next.StartDate, next.EndDate)
		if err != nil {
			return placement.Decision{}, fmt.Errorf("failed to read slots for edit: %w", err)
		}
	}

	decision := placement.EvaluateEdit(current, req, func(key calendar.SlotKey) []schedule.Schedule {
		return projection.OccupantsOf(rows, key)
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if decision.Accepted {
		p.submitLocked(decision.Operation)
	} else if msg := decision.Message(); msg != "" {
		p.noticeLocked(LevelWarning, msg)
	}
	return decision, nil
}

func (p *Planner) submitLocked(op placement.Operation) {
	p.pendingSeq++
	pm := Pending{ID: p.pendingSeq, Kind: op.Kind(), PlacementID: op.PlacementID()}
	switch o := op.(type) {
	case placement.CreateOperation:
		target := o.Target
		pm.RecipeID, pm.Target = o.RecipeID, &target
	case placement.MoveOperation:
		target := o.Target
		pm.RecipeID, pm.Target = o.RecipeID, &target
	}
	p.pending[pm.ID] = pm

	p.inflight.Add(1)
	go p.execute(op, pm.ID)
}

// execute runs on a context detached from whatever request triggered the
// mutation: once issued, a mutation is never cancelled.
func (p *Planner) execute(op placement.Operation, pendingID uint64) {
	defer p.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	started := time.Now()
	err := op.Execute(ctx, p.store)
	p.record(op.Kind(), err, time.Since(started))

	if err != nil {
		p.logger.Error("schedule mutation failed",
			zap.String("operation", string(op.Kind())),
			zap.Int64("placement_id", op.PlacementID()),
			zap.Error(err))
		p.mu.Lock()
		delete(p.pending, pendingID)
		p.noticeLocked(LevelError, op.Failure(err))
		p.mu.Unlock()
		return
	}

	if err := p.Load(ctx); err != nil {
		p.logger.Warn("reconciliation fetch failed", zap.Error(err))
	}

	p.mu.Lock()
	delete(p.pending, pendingID)
	p.noticeLocked(LevelSuccess, op.Success())
	p.mu.Unlock()
}

func (p *Planner) record(kind placement.Kind, err error, latency time.Duration) {
	if p.recorder == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	m := metrics.MutationMetric{
		Operation: string(kind),
		Outcome:   outcome,
		LatencyMS: latency.Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if err := p.recorder.Record(m); err != nil {
		p.logger.Warn("failed to record mutation metric", zap.Error(err))
	}
}
