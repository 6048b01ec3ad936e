package schedule

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"meal-scheduler/internal/storeapi"

	"cloud.google.com/go/civil"
)

// client is the REST implementation of Store.
type client struct {
	transport *storeapi.Transport
}

// NewClient creates a Store talking to the /schedule endpoints.
func NewClient(t *storeapi.Transport) Store {
	return &client{transport: t}
}

// FetchRange calls GET /schedule/range/.
func (c *client) FetchRange(ctx context.Context, start, end civil.Date) ([]Schedule, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	q := url.Values{}
	q.Set("start_date", start.String())
	q.Set("end_date", end.String())

	var schedules []Schedule
	if err := c.transport.Do(ctx, http.MethodGet, "/schedule/range/", q, nil, &schedules); err != nil {
		return nil, fmt.Errorf("failed to fetch schedules %s..%s: %w", start, end, err)
	}
	return schedules, nil
}

// Create calls POST /schedule/recipe/{recipeId}.
func (c *client) Create(ctx context.Context, recipeID int64, req CreateRequest) (*Schedule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var created Schedule
	path := fmt.Sprintf("/schedule/recipe/%d", recipeID)
	if err := c.transport.Do(ctx, http.MethodPost, path, nil, req, &created); err != nil {
		return nil, fmt.Errorf("failed to create schedule for recipe %d: %w", recipeID, err)
	}
	return &created, nil
}

// Update calls PUT /schedule/{id}.
func (c *client) Update(ctx context.Context, id int64, req UpdateRequest) (*Schedule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var updated Schedule
	path := fmt.Sprintf("/schedule/%d", id)
	if err := c.transport.Do(ctx, http.MethodPut, path, nil, req, &updated); err != nil {
		return nil, fmt.Errorf("failed to update schedule %d: %w", id, err)
	}
	return &updated, nil
}

// Delete calls DELETE /schedule/{id}; a 404 counts as already deleted.
func (c *client) Delete(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/schedule/%d", id)
	err := c.transport.Do(ctx, http.MethodDelete, path, nil, nil, nil)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete schedule %d: %w", id, err)
	}
	return nil
}
