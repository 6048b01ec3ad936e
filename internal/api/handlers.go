package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/drag"
	"meal-scheduler/internal/placement"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/schedule"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxDragPayload bounds the posted drag transfer data.
const maxDragPayload = 64 << 10

func (s *Server) getWeek(c *gin.Context) {
	p := plannerFrom(c)
	ctx := c.Request.Context()

	var err error
	if raw := c.Query("date"); raw != "" {
		d, parseErr := civil.ParseDate(raw)
		if parseErr != nil {
			JSONError(c, s.logger, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD", parseErr.Error())
			return
		}
		err = p.GoTo(ctx, d)
	} else if !p.View().Loaded {
		err = p.Load(ctx)
	}
	s.respondView(c, p, err)
}

func (s *Server) nextWeek(c *gin.Context) {
	p := plannerFrom(c)
	s.respondView(c, p, p.Next(c.Request.Context()))
}

func (s *Server) prevWeek(c *gin.Context) {
	p := plannerFrom(c)
	s.respondView(c, p, p.Prev(c.Request.Context()))
}

func (s *Server) today(c *gin.Context) {
	p := plannerFrom(c)
	s.respondView(c, p, p.Today(c.Request.Context()))
}

func (s *Server) retry(c *gin.Context) {
	p := plannerFrom(c)
	s.respondView(c, p, p.Retry(c.Request.Context()))
}

// respondView always answers with the view. A failed load is reported
// inside it as an unavailable week the client can retry.
func (s *Server) respondView(c *gin.Context, p *planner.Planner, loadErr error) {
	if loadErr != nil {
		s.logger.Debug("week load failed", zap.Error(loadErr))
	}
	c.JSON(http.StatusOK, p.View())
}

type filterRequest struct {
	MealTypes []string `json:"meal_types"`
}

func (s *Server) setFilter(c *gin.Context) {
	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, s.logger, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	mealTypes := make([]calendar.MealType, 0, len(req.MealTypes))
	for _, raw := range req.MealTypes {
		m, ok := calendar.ParseMealType(raw)
		if !ok {
			JSONError(c, s.logger, http.StatusBadRequest, "Unknown meal type", raw)
			return
		}
		mealTypes = append(mealTypes, m)
	}
	p := plannerFrom(c)
	p.SetFilter(mealTypes)
	c.JSON(http.StatusOK, p.View())
}

func (s *Server) listRecipes(c *gin.Context) {
	recipes, err := s.catalog.List(c.Request.Context())
	if err != nil {
		JSONError(c, s.logger, http.StatusBadGateway, "Failed to load recipes", err.Error())
		return
	}
	c.JSON(http.StatusOK, recipe.Search(recipes, c.Query("q")))
}

type dragResponse struct {
	Phase    string            `json:"phase"`
	Kind     string            `json:"kind,omitempty"`
	Target   *calendar.SlotKey `json:"target,omitempty"`
	Decision *decisionResponse `json:"decision,omitempty"`
}

type decisionResponse struct {
	Accepted  bool   `json:"accepted"`
	Operation string `json:"operation,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
}

func newDecisionResponse(d placement.Decision) *decisionResponse {
	if d.Accepted {
		return &decisionResponse{Accepted: true, Operation: string(d.Operation.Kind())}
	}
	return &decisionResponse{Reason: d.Reason.String(), Message: d.Message()}
}

func (s *Server) dispatch(c *gin.Context, intent drag.Intent) {
	out := plannerFrom(c).Dispatch(intent)
	resp := dragResponse{Phase: out.State.Phase.String(), Target: out.State.Target}
	if out.State.Active() {
		resp.Kind = out.State.Payload.Kind.String()
	}
	if out.Decision != nil {
		resp.Decision = newDecisionResponse(*out.Decision)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) dragBegin(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDragPayload))
	if err != nil {
		JSONError(c, s.logger, http.StatusBadRequest, "Failed to read drag payload", err.Error())
		return
	}
	s.dispatch(c, drag.BeginRaw{Data: data})
}

type enterRequest struct {
	Slot string `json:"slot" binding:"required"`
}

func (s *Server) dragEnter(c *gin.Context) {
	var req enterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, s.logger, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	key, err := calendar.ParseSlotKey(req.Slot)
	if err != nil {
		JSONError(c, s.logger, http.StatusBadRequest, "Invalid slot", err.Error())
		return
	}
	s.dispatch(c, drag.Enter{Target: key})
}

func (s *Server) dragLeave(c *gin.Context)  { s.dispatch(c, drag.Leave{}) }
func (s *Server) dragDrop(c *gin.Context)   { s.dispatch(c, drag.Drop{}) }
func (s *Server) dragCancel(c *gin.Context) { s.dispatch(c, drag.Abort{}) }

func placementID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

type editRequest struct {
	StartDate *civil.Date `json:"start_date"`
	EndDate   *civil.Date `json:"end_date"`
	MealType  *string     `json:"meal_type"`
	Notes     *string     `json:"notes"`
}

func (r editRequest) toUpdate() (schedule.UpdateRequest, bool) {
	req := schedule.UpdateRequest{StartDate: r.StartDate, EndDate: r.EndDate, Notes: r.Notes}
	if r.MealType != nil {
		m, ok := calendar.ParseMealType(*r.MealType)
		if !ok {
			return req, false
		}
		req.MealType = &m
	}
	return req, true
}

func (s *Server) editPlacement(c *gin.Context) {
	id, ok := placementID(c)
	if !ok {
		JSONError(c, s.logger, http.StatusBadRequest, "Invalid placement id", c.Param("id"))
		return
	}
	var body editRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		JSONError(c, s.logger, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	req, ok := body.toUpdate()
	if !ok {
		JSONError(c, s.logger, http.StatusBadRequest, "Unknown meal type", *body.MealType)
		return
	}

	decision, err := plannerFrom(c).Edit(c.Request.Context(), id, req)
	switch {
	case errors.Is(err, planner.ErrNoSuchPlacement):
		JSONError(c, s.logger, http.StatusNotFound, "Placement not found", err.Error())
		return
	case err != nil:
		JSONError(c, s.logger, http.StatusBadGateway, "Failed to check placement", err.Error())
		return
	}

	status := http.StatusOK
	if decision.Accepted {
		status = http.StatusAccepted
	}
	c.JSON(status, newDecisionResponse(decision))
}

func (s *Server) deletePlacement(c *gin.Context) {
	id, ok := placementID(c)
	if !ok {
		JSONError(c, s.logger, http.StatusBadRequest, "Invalid placement id", c.Param("id"))
		return
	}
	plannerFrom(c).Delete(id)
	c.Status(http.StatusAccepted)
}

func (s *Server) notices(c *gin.Context) {
	notices := plannerFrom(c).Notices()
	if notices == nil {
		notices = []planner.Notice{}
	}
	c.JSON(http.StatusOK, notices)
}
