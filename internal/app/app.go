// Package app implements the meal-scheduler command line: inspecting a
// week and placing, moving or removing recipes through the same planner
// the interactive front ends use.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/drag"
	"meal-scheduler/internal/placement"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/recipe"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUsage is returned for unknown commands or bad arguments.
	ErrUsage = errors.New("invalid usage")
	// ErrRejected is returned when the placement rules refuse a change.
	ErrRejected = errors.New("change rejected")
	// ErrMutationFailed is returned when the Schedule Store refused a change.
	ErrMutationFailed = errors.New("change failed")
)

// MetricsCleaner prunes old mutation metrics.
type MetricsCleaner interface {
	Cleanup(olderThanDays int) (int64, error)
}

// App holds the application's dependencies.
type App struct {
	planner *planner.Planner
	catalog recipe.Catalog
	metrics MetricsCleaner
	out     io.Writer
	logger  *zap.Logger
}

// NewApp creates and initializes a new App instance.
func NewApp(p *planner.Planner, catalog recipe.Catalog, metricsStore MetricsCleaner, out io.Writer, logger *zap.Logger) *App {
	return &App{
		planner: p,
		catalog: catalog,
		metrics: metricsStore,
		out:     out,
		logger:  logger,
	}
}

// Run executes one command line.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.PrintUsage()
		return ErrUsage
	}

	switch args[0] {
	case "week":
		fs := a.flagSet("week")
		date := fs.String("date", "", "Any date in the week to show (YYYY-MM-DD)")
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		if *date == "" {
			return a.ShowWeek(ctx, nil)
		}
		d, err := civil.ParseDate(*date)
		if err != nil {
			return fmt.Errorf("%w: invalid date %q", ErrUsage, *date)
		}
		return a.ShowWeek(ctx, &d)

	case "recipes":
		return a.ListRecipes(ctx)

	case "place", "move":
		if len(args) != 4 {
			return fmt.Errorf("%w: %s <id> <date> <meal>", ErrUsage, args[0])
		}
		id, key, err := parseTarget(args[1], args[2], args[3])
		if err != nil {
			return err
		}
		if args[0] == "place" {
			return a.Place(ctx, id, key)
		}
		return a.Move(ctx, id, key)

	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("%w: delete <scheduleID>", ErrUsage)
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return a.Delete(id)

	case "metrics-cleanup":
		fs := a.flagSet("metrics-cleanup")
		days := fs.Int("days", 30, "Keep records for the last N days")
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		return a.CleanupMetrics(*days)
	}

	fmt.Fprintf(a.out, "Unknown command: %s\n", args[0])
	a.PrintUsage()
	return ErrUsage
}

// PrintUsage writes the command summary.
func (a *App) PrintUsage() {
	fmt.Fprintln(a.out, "Usage: meal-scheduler <command> [arguments]")
	fmt.Fprintln(a.out, "\nCommands:")
	fmt.Fprintln(a.out, "  week [-date YYYY-MM-DD]              Show the week's schedule")
	fmt.Fprintln(a.out, "  recipes                              List recipes")
	fmt.Fprintln(a.out, "  place <recipeID> <date> <meal>       Schedule a recipe")
	fmt.Fprintln(a.out, "  move <scheduleID> <date> <meal>      Move a scheduled recipe")
	fmt.Fprintln(a.out, "  delete <scheduleID>                  Remove a scheduled recipe")
	fmt.Fprintln(a.out, "  metrics-cleanup [-days N]            Remove old metric records")
}

func (a *App) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrUsage, s)
	}
	return id, nil
}

func parseTarget(idArg, dateArg, mealArg string) (int64, calendar.SlotKey, error) {
	id, err := parseID(idArg)
	if err != nil {
		return 0, calendar.SlotKey{}, err
	}
	d, err := civil.ParseDate(dateArg)
	if err != nil {
		return 0, calendar.SlotKey{}, fmt.Errorf("%w: invalid date %q", ErrUsage, dateArg)
	}
	m, ok := calendar.ParseMealType(mealArg)
	if !ok {
		return 0, calendar.SlotKey{}, fmt.Errorf("%w: unknown meal type %q", ErrUsage, mealArg)
	}
	return id, calendar.NewSlotKey(d, m), nil
}

// ShowWeek prints the week containing date, or the current week. The
// catalog is read alongside to name placements the store did not expand.
func (a *App) ShowWeek(ctx context.Context, date *civil.Date) error {
	var titles map[int64]recipe.Recipe

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if date != nil {
			return a.planner.GoTo(gctx, *date)
		}
		return a.planner.Load(gctx)
	})
	g.Go(func() error {
		recipes, err := a.catalog.List(gctx)
		if err != nil {
			a.logger.Warn("recipe catalog unavailable, showing ids only", zap.Error(err))
			return nil
		}
		titles = recipe.Index(recipes)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	writeWeek(a.out, a.planner.View(), titles)
	return nil
}

func writeWeek(w io.Writer, v planner.View, titles map[int64]recipe.Recipe) {
	fmt.Fprintf(w, "=== WEEK OF %s ===\n", v.WeekStart)
	for _, d := range v.Dates {
		fmt.Fprintf(w, "\n%s\n", d.In(time.UTC).Format("Monday 02 Jan"))
		empty := true
		for _, m := range v.MealTypes {
			s, _ := v.Slot(calendar.NewSlotKey(d, m))
			if len(s.Placements) == 0 {
				continue
			}
			empty = false
			names := make([]string, 0, len(s.Placements))
			for _, pl := range s.Placements {
				title := pl.Title()
				if r, ok := titles[pl.RecipeID]; ok && pl.Recipe == nil {
					title = r.Title
				}
				names = append(names, fmt.Sprintf("%s (#%d)", title, pl.ID))
			}
			fmt.Fprintf(w, "  %-10s %s\n", m.Title()+":", strings.Join(names, ", "))
		}
		if empty {
			fmt.Fprintln(w, "  -")
		}
	}
}

// ListRecipes prints the catalog.
func (a *App) ListRecipes(ctx context.Context) error {
	recipes, err := a.catalog.List(ctx)
	if err != nil {
		return err
	}
	for _, r := range recipes {
		fmt.Fprintf(a.out, "%5d  %s", r.ID, r.Title)
		if r.CookingTime > 0 {
			fmt.Fprintf(a.out, " (%d min)", r.CookingTime)
		}
		fmt.Fprintln(a.out)
	}
	return nil
}

// Place schedules a catalog recipe into the cell key.
func (a *App) Place(ctx context.Context, recipeID int64, key calendar.SlotKey) error {
	if err := a.planner.GoTo(ctx, key.Date); err != nil {
		return err
	}
	recipes, err := a.catalog.List(ctx)
	if err != nil {
		return err
	}
	r, ok := recipe.Index(recipes)[recipeID]
	if !ok {
		return fmt.Errorf("recipe %d not found", recipeID)
	}
	return a.drop(drag.FromRecipe(r), key)
}

// Move reschedules a placement. The placement must be on the calendar of
// the week containing the target date.
func (a *App) Move(ctx context.Context, scheduleID int64, key calendar.SlotKey) error {
	if err := a.planner.GoTo(ctx, key.Date); err != nil {
		return err
	}
	s, ok := a.planner.Placement(scheduleID)
	if !ok {
		return fmt.Errorf("schedule %d in week of %s: %w", scheduleID, a.planner.WeekStart(), planner.ErrNoSuchPlacement)
	}
	return a.drop(drag.FromSchedule(s), key)
}

// Delete removes a placement.
func (a *App) Delete(scheduleID int64) error {
	a.planner.Delete(scheduleID)
	return a.settle()
}

// CleanupMetrics removes metric records older than days.
func (a *App) CleanupMetrics(days int) error {
	if a.metrics == nil {
		return errors.New("metrics store not configured")
	}
	affected, err := a.metrics.Cleanup(days)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	fmt.Fprintf(a.out, "Successfully removed %d old metric records.\n", affected)
	return nil
}

// drop replays a full gesture onto key.
func (a *App) drop(payload drag.Payload, key calendar.SlotKey) error {
	a.planner.Dispatch(drag.Begin{Payload: payload})
	a.planner.Dispatch(drag.Enter{Target: key})
	out := a.planner.Dispatch(drag.Drop{})
	a.planner.Notices()

	switch {
	case out.Decision == nil:
		return fmt.Errorf("%s is not on the calendar", key)
	case out.Decision.Reason == placement.NoOp:
		fmt.Fprintln(a.out, "Nothing to change.")
		return nil
	case !out.Decision.Accepted:
		return fmt.Errorf("%w: %s", ErrRejected, out.Decision.Message())
	}
	return a.settle()
}

// settle waits for issued mutations and prints their notices.
func (a *App) settle() error {
	a.planner.Wait()
	var failed error
	for _, n := range a.planner.Notices() {
		fmt.Fprintln(a.out, n.Message)
		if n.Level == planner.LevelError && failed == nil {
			failed = fmt.Errorf("%w: %s", ErrMutationFailed, n.Message)
		}
	}
	return failed
}
