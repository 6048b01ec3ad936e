package app

import (
	"context"
	"fmt"

	"meal-scheduler/internal/cache"
	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/config"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/schedule"
	"meal-scheduler/internal/storeapi"

	"go.uber.org/zap"
)

// Backend is the remote side every front end talks to.
type Backend struct {
	Store   *schedule.CachedStore
	Catalog recipe.Catalog
	close   func()
}

// Close releases the range cache connection, if any.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// NewBackend builds the REST store client behind a range cache. Redis is
// used when REDIS_ADDR is set, an in-process cache otherwise.
func NewBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	transport := storeapi.New(cfg)
	b := &Backend{Catalog: recipe.NewCatalog(transport)}

	var rc schedule.RangeCache = cache.NewMemory(cfg.CacheTTL)
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		rc = cache.NewRedis(client, cfg.CacheTTL)
		b.close = func() { _ = client.Close() }
		logger.Info("using redis range cache", zap.String("addr", cfg.RedisAddr))
	}

	b.Store = schedule.NewCachedStore(schedule.NewClient(transport), rc, logger)
	return b, nil
}

// MealTypesFrom parses configured meal type names.
func MealTypesFrom(names []string) ([]calendar.MealType, error) {
	out := make([]calendar.MealType, 0, len(names))
	for _, name := range names {
		m, ok := calendar.ParseMealType(name)
		if !ok {
			return nil, fmt.Errorf("unknown meal type %q", name)
		}
		out = append(out, m)
	}
	return out, nil
}

// PlannerFactory returns a constructor for session planners sharing store
// and recorder.
func PlannerFactory(cfg *config.Config, store schedule.Store, recorder planner.Recorder, logger *zap.Logger) (func() *planner.Planner, error) {
	mealTypes, err := MealTypesFrom(cfg.DefaultMealTypes)
	if err != nil {
		return nil, fmt.Errorf("invalid MEAL_TYPES: %w", err)
	}
	return func() *planner.Planner {
		return planner.New(store, recorder, logger,
			planner.WithMealTypes(mealTypes),
			planner.WithMutationTimeout(cfg.MutationTimeout))
	}, nil
}
