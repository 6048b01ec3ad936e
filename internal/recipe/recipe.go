package recipe

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"meal-scheduler/internal/storeapi"
)

// Recipe is the read-only catalog entry a user drags onto the calendar.
type Recipe struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CookingTime int    `json:"cooking_time"`
	Servings    int    `json:"servings"`
}

// Catalog lists the recipes available for scheduling.
type Catalog interface {
	List(ctx context.Context) ([]Recipe, error)
}

// catalogClient reads recipes from the store's REST API.
type catalogClient struct {
	transport *storeapi.Transport
}

// NewCatalog creates a Catalog backed by GET /recipe/.
func NewCatalog(t *storeapi.Transport) Catalog {
	return &catalogClient{transport: t}
}

// List fetches every recipe, sorted by title for stable display.
func (c *catalogClient) List(ctx context.Context) ([]Recipe, error) {
	var recipes []Recipe
	if err := c.transport.Do(ctx, http.MethodGet, "/recipe/", nil, nil, &recipes); err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	sort.SliceStable(recipes, func(i, j int) bool {
		return recipes[i].Title < recipes[j].Title
	})
	return recipes, nil
}

// Index maps recipes by id.
func Index(recipes []Recipe) map[int64]Recipe {
	idx := make(map[int64]Recipe, len(recipes))
	for _, r := range recipes {
		idx[r.ID] = r
	}
	return idx
}

// Search keeps the recipes whose title contains query, ignoring case. An
// empty query keeps everything.
func Search(recipes []Recipe, query string) []Recipe {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return recipes
	}
	out := make([]Recipe, 0, len(recipes))
	for _, r := range recipes {
		if strings.Contains(strings.ToLower(r.Title), query) {
			out = append(out, r)
		}
	}
	return out
}
