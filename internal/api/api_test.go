package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/schedule"
	"meal-scheduler/internal/schedule/scheduletest"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	fixedNow = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	recipes  = []recipe.Recipe{
		{ID: 1, Title: "Soup"},
		{ID: 2, Title: "Salad"},
		{ID: 3, Title: "Pasta"},
		{ID: 4, Title: "Curry"},
	}
)

type MockCatalog struct {
	recipes []recipe.Recipe
	err     error
}

func (m *MockCatalog) List(ctx context.Context) ([]recipe.Recipe, error) {
	return m.recipes, m.err
}

type MockMetrics struct {
	summary []metrics.DailySummary
}

func (m *MockMetrics) GetDailySummary(days int) ([]metrics.DailySummary, error) {
	return m.summary, nil
}

func date(day int) civil.Date {
	return civil.Date{Year: 2024, Month: time.June, Day: day}
}

func row(id, recipeID int64, day int, m calendar.MealType) schedule.Schedule {
	return schedule.Schedule{ID: id, RecipeID: recipeID, StartDate: date(day), EndDate: date(day), MealType: m}
}

type testServer struct {
	router   *gin.Engine
	store    *scheduletest.Store
	sessions *planner.Sessions
}

func newTestServer(t *testing.T, catalog recipe.Catalog, rows ...schedule.Schedule) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := scheduletest.NewStore(recipes, rows...)
	sessions := planner.NewSessions(time.Hour, func() *planner.Planner {
		return planner.New(store, nil, zap.NewNop(), planner.WithClock(func() time.Time { return fixedNow }))
	})
	srv := NewServer(sessions, catalog, &MockMetrics{}, t.TempDir()+"/metrics.db", zap.NewNop())
	return &testServer{router: srv.Router(), store: store, sessions: sessions}
}

func (ts *testServer) do(method, path, session string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) newSession(t *testing.T) (string, planner.View) {
	t.Helper()
	w := ts.do(http.MethodPost, "/api/sessions", "", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating session, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		SessionID string       `json:"session_id"`
		View      planner.View `json:"view"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode session response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("Expected a session id")
	}
	return resp.SessionID, resp.View
}

func (ts *testServer) wait(t *testing.T, id string) {
	t.Helper()
	sess, ok := ts.sessions.Get(id)
	if !ok {
		t.Fatalf("Session %s not found", id)
	}
	sess.Planner.Wait()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &MockCatalog{})
	w := ts.do(http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestSessionRequired(t *testing.T) {
	ts := newTestServer(t, &MockCatalog{})

	t.Run("MissingHeader", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/week", "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})

	t.Run("UnknownSession", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/week", "nope", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})
}

func TestCreateSessionLoadsCurrentWeek(t *testing.T) {
	ts := newTestServer(t, &MockCatalog{}, row(10, 1, 3, calendar.Dinner))
	_, view := ts.newSession(t)

	if !view.Loaded {
		t.Fatal("Expected the week to be loaded")
	}
	if view.WeekStart != date(2) || view.WeekEnd != date(8) {
		t.Errorf("Expected week 2024-06-02..08, got %s..%s", view.WeekStart, view.WeekEnd)
	}
	s, ok := view.Slot(calendar.NewSlotKey(date(3), calendar.Dinner))
	if !ok || len(s.Placements) != 1 || s.Placements[0].ID != 10 {
		t.Errorf("Expected placement 10 on Monday dinner, got %+v", s)
	}
}

func TestWeekNavigation(t *testing.T) {
	ts := newTestServer(t, &MockCatalog{})
	id, _ := ts.newSession(t)

	t.Run("Next", func(t *testing.T) {
		v := decode[planner.View](t, ts.do(http.MethodPost, "/api/week/next", id, nil))
		if v.WeekStart != date(9) {
			t.Errorf("Expected 2024-06-09, got %s", v.WeekStart)
		}
	})

	t.Run("ByDate", func(t *testing.T) {
		v := decode[planner.View](t, ts.do(http.MethodGet, "/api/week?date=2024-06-20", id, nil))
		if v.WeekStart != date(16) {
			t.Errorf("Expected 2024-06-16, got %s", v.WeekStart)
		}
	})

	t.Run("InvalidDate", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/week?date=June", id, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("Today", func(t *testing.T) {
		v := decode[planner.View](t, ts.do(http.MethodPost, "/api/week/today", id, nil))
		if v.WeekStart != date(2) {
			t.Errorf("Expected 2024-06-02, got %s", v.WeekStart)
		}
		notices := decode[[]planner.Notice](t, ts.do(http.MethodGet, "/api/notices", id, nil))
		if len(notices) != 1 || notices[0].Message != "Calendar updated to current week" {
			t.Errorf("Expected the current week notice, got %+v", notices)
		}
	})
}

func TestUnavailableWeekAndRetry(t *testing.T) {
	ts := newTestServer(t, &MockCatalog{})
	id, _ := ts.newSession(t)

	ts.store.FailWith(scheduletest.OpFetch, errors.New("store down"))
	v := decode[planner.View](t, ts.do(http.MethodPost, "/api/week/next", id, nil))
	if !v.Unavailable {
		t.Error("Expected the week to be unavailable")
	}

	ts.store.FailWith(scheduletest.OpFetch, nil)
	v = decode[planner.View](t, ts.do(http.MethodPost, "/api/week/retry", id, nil))
	if v.Unavailable || !v.Loaded {
		t.Errorf("Expected the week to load on retry, got %+v", v)
	}
}

func TestSetFilter(t *testing.T) {
	ts := newTestServer(t, &MockCatalog{})
	id, _ := ts.newSession(t)

	t.Run("Valid", func(t *testing.T) {
		v := decode[planner.View](t, ts.do(http.MethodPut, "/api/filter", id, []byte(`{"meal_types":["dinner","snack"]}`)))
		if len(v.MealTypes) != 2 || len(v.Slots) != 14 {
			t.Errorf("Expected 2 meal types and 14 cells, got %v and %d", v.MealTypes, len(v.Slots))
		}
	})

	t.Run("UnknownMealType", func(t *testing.T) {
		w := ts.do(http.MethodPut, "/api/filter", id, []byte(`{"meal_types":["brunch"]}`))
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})
}

func TestListRecipes(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ts := newTestServer(t, &MockCatalog{recipes: recipes})
		id, _ := ts.newSession(t)
		got := decode[[]recipe.Recipe](t, ts.do(http.MethodGet, "/api/recipes", id, nil))
		if len(got) != len(recipes) {
			t.Errorf("Expected %d recipes, got %d", len(recipes), len(got))
		}
	})

	t.Run("TitleSearch", func(t *testing.T) {
		ts := newTestServer(t, &MockCatalog{recipes: recipes})
		id, _ := ts.newSession(t)
		got := decode[[]recipe.Recipe](t, ts.do(http.MethodGet, "/api/recipes?q=U", id, nil))
		if len(got) != 2 || got[0].Title != "Soup" || got[1].Title != "Curry" {
			t.Errorf("Expected Soup and Curry, got %+v", got)
		}
	})

	t.Run("CatalogDown", func(t *testing.T) {
		ts := newTestServer(t, &MockCatalog{err: errors.New("unreachable")})
		id, _ := ts.newSession(t)
		w := ts.do(http.MethodGet, "/api/recipes", id, nil)
		if w.Code != http.StatusBadGateway {
			t.Errorf("Expected 502, got %d", w.Code)
		}
	})
}

func TestDragFromCatalog(t *testing.T) {
	ts := newTestServer(t, &MockCatalog{}, row(10, 2, 3, calendar.Dinner))
	id, _ := ts.newSession(t)

	begin := decode[dragResponse](t, ts.do(http.MethodPost, "/api/drag/begin", id, []byte(`{"id":1,"title":"Soup"}`)))
	if begin.Phase != "dragging" {
		t.Fatalf("Expected dragging, got %s", begin.Phase)
	}

	enter := decode[dragResponse](t, ts.do(http.MethodPost, "/api/drag/enter", id, []byte(`{"slot":"2024-06-03|dinner"}`)))
	if enter.Phase != "hovering" || enter.Target == nil {
		t.Fatalf("Expected hovering over a target, got %+v", enter)
	}

	dropped := decode[dragResponse](t, ts.do(http.MethodPost, "/api/drag/drop", id, nil))
	if dropped.Decision == nil || !dropped.Decision.Accepted || dropped.Decision.Operation != "create" {
		t.Fatalf("Expected an accepted create, got %+v", dropped.Decision)
	}
	if dropped.Phase != "committing" {
		t.Errorf("Expected committing, got %s", dropped.Phase)
	}
	if state := decode[dragResponse](t, ts.do(http.MethodPost, "/api/drag/leave", id, nil)); state.Phase != "idle" {
		t.Errorf("Expected the gesture to have settled, got %s", state.Phase)
	}

	ts.wait(t, id)
	if got := ts.store.Occupants(calendar.NewSlotKey(date(3), calendar.Dinner)); len(got) != 2 {
		t.Errorf("Expected 2 placements after the drop, got %d", len(got))
	}
	notices := decode[[]planner.Notice](t, ts.do(http.MethodGet, "/api/notices", id, nil))
	if len(notices) != 1 || notices[0].Message != "Recipe added to your schedule" {
		t.Errorf("Expected the success notice, got %+v", notices)
	}
}

func TestDragRejectedDuplicate(t *testing.T) {
	ts := newTestServer(t, &MockCatalog{}, row(10, 1, 3, calendar.Dinner))
	id, _ := ts.newSession(t)

	ts.do(http.MethodPost, "/api/drag/begin", id, []byte(`{"id":1,"title":"Soup"}`))
	ts.do(http.MethodPost, "/api/drag/enter", id, []byte(`{"slot":"2024-06-03|dinner"}`))
	dropped := decode[dragResponse](t, ts.do(http.MethodPost, "/api/drag/drop", id, nil))

	if dropped.Decision == nil || dropped.Decision.Accepted {
		t.Fatalf("Expected a rejection, got %+v", dropped.Decision)
	}
	if dropped.Decision.Message != "Soup is already scheduled for this meal" {
		t.Errorf("Unexpected message %q", dropped.Decision.Message)
	}
	if ts.store.Mutations() != 0 {
		t.Errorf("Expected no store mutation, got %d", ts.store.Mutations())
	}
}

func TestDragRequestValidation(t *testing.T) {
	ts := newTestServer(t, &MockCatalog{})
	id, _ := ts.newSession(t)

	t.Run("MalformedPayloadCancels", func(t *testing.T) {
		resp := decode[dragResponse](t, ts.do(http.MethodPost, "/api/drag/begin", id, []byte(`not json`)))
		if resp.Phase == "dragging" {
			t.Errorf("Expected the gesture not to start, got %s", resp.Phase)
		}
	})

	t.Run("InvalidSlot", func(t *testing.T) {
		w := ts.do(http.MethodPost, "/api/drag/enter", id, []byte(`{"slot":"2024-06-03"}`))
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("Cancel", func(t *testing.T) {
		ts.do(http.MethodPost, "/api/drag/begin", id, []byte(`{"id":1,"title":"Soup"}`))
		resp := decode[dragResponse](t, ts.do(http.MethodPost, "/api/drag/cancel", id, nil))
		if resp.Phase == "dragging" || resp.Phase == "hovering" {
			t.Errorf("Expected the gesture to end, got %s", resp.Phase)
		}
	})
}

func TestEditPlacement(t *testing.T) {
	t.Run("Accepted", func(t *testing.T) {
		ts := newTestServer(t, &MockCatalog{}, row(10, 1, 3, calendar.Dinner))
		id, _ := ts.newSession(t)

		w := ts.do(http.MethodPut, "/api/placements/10", id, []byte(`{"meal_type":"lunch"}`))
		if w.Code != http.StatusAccepted {
			t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
		}
		ts.wait(t, id)
		got, _ := ts.store.Get(10)
		if got.MealType != calendar.Lunch {
			t.Errorf("Expected lunch, got %q", got.MealType)
		}
	})

	t.Run("InvalidRange", func(t *testing.T) {
		ts := newTestServer(t, &MockCatalog{}, row(10, 1, 3, calendar.Dinner))
		id, _ := ts.newSession(t)

		w := ts.do(http.MethodPut, "/api/placements/10", id, []byte(`{"end_date":"2024-06-01"}`))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200 with a rejection, got %d", w.Code)
		}
		resp := decode[decisionResponse](t, w)
		if resp.Accepted || resp.Message != "End date must not be before start date" {
			t.Errorf("Unexpected decision %+v", resp)
		}
	})

	t.Run("UnknownPlacement", func(t *testing.T) {
		ts := newTestServer(t, &MockCatalog{})
		id, _ := ts.newSession(t)
		w := ts.do(http.MethodPut, "/api/placements/99", id, []byte(`{"notes":"x"}`))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", w.Code)
		}
	})

	t.Run("UnknownMealType", func(t *testing.T) {
		ts := newTestServer(t, &MockCatalog{}, row(10, 1, 3, calendar.Dinner))
		id, _ := ts.newSession(t)
		w := ts.do(http.MethodPut, "/api/placements/10", id, []byte(`{"meal_type":"brunch"}`))
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})
}

func TestDeletePlacement(t *testing.T) {
	ts := newTestServer(t, &MockCatalog{}, row(10, 1, 3, calendar.Dinner))
	id, _ := ts.newSession(t)

	w := ts.do(http.MethodDelete, "/api/placements/10", id, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}
	ts.wait(t, id)
	if _, ok := ts.store.Get(10); ok {
		t.Error("Expected placement 10 to be gone")
	}

	t.Run("InvalidID", func(t *testing.T) {
		w := ts.do(http.MethodDelete, "/api/placements/abc", id, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})
}

func TestMetricsReport(t *testing.T) {
	ts := newTestServer(t, &MockCatalog{})
	w := ts.do(http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var report map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	for _, key := range []string{"system", "sessions", "mutations"} {
		if _, ok := report[key]; !ok {
			t.Errorf("Expected %q in the report", key)
		}
	}
}
