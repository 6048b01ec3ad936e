// Package api exposes calendar sessions over HTTP for the browser front
// end. Drag gestures arrive as intents; the drag payload is posted in its
// wire format.
package api

import (
	"net/http"
	"time"

	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/recipe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	clientRequestsPerSecond = 20
	clientBurst             = 40
	summaryDays             = 7
)

// MetricsSource reports mutation statistics.
type MetricsSource interface {
	GetDailySummary(days int) ([]metrics.DailySummary, error)
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	sessions     *planner.Sessions
	catalog      recipe.Catalog
	metrics      MetricsSource
	logger       *zap.Logger
	databasePath string
	started      time.Time
}

// NewServer creates a Server. metricsSource may be nil.
func NewServer(sessions *planner.Sessions, catalog recipe.Catalog, metricsSource MetricsSource, databasePath string, logger *zap.Logger) *Server {
	return &Server{
		sessions:     sessions,
		catalog:      catalog,
		metrics:      metricsSource,
		logger:       logger,
		databasePath: databasePath,
		started:      time.Now(),
	}
}

// Router builds the gin engine with every route and middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler(s.logger))
	r.Use(RequestLogger(s.logger))
	r.Use(CORS())
	r.Use(RateLimitMiddleware(rate.Limit(clientRequestsPerSecond), clientBurst, s.logger))

	r.GET("/health", s.health)
	r.GET("/metrics", s.metricsReport)

	api := r.Group("/api")
	api.POST("/sessions", s.createSession)

	session := api.Group("")
	session.Use(SessionMiddleware(s.sessions, s.logger))
	{
		session.GET("/week", s.getWeek)
		session.POST("/week/next", s.nextWeek)
		session.POST("/week/prev", s.prevWeek)
		session.POST("/week/today", s.today)
		session.POST("/week/retry", s.retry)
		session.PUT("/filter", s.setFilter)
		session.GET("/recipes", s.listRecipes)

		session.POST("/drag/begin", s.dragBegin)
		session.POST("/drag/enter", s.dragEnter)
		session.POST("/drag/leave", s.dragLeave)
		session.POST("/drag/drop", s.dragDrop)
		session.POST("/drag/cancel", s.dragCancel)

		session.PUT("/placements/:id", s.editPlacement)
		session.DELETE("/placements/:id", s.deletePlacement)

		session.GET("/notices", s.notices)
	}
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) metricsReport(c *gin.Context) {
	report := gin.H{
		"system":   metrics.GetSysHealth(s.databasePath, s.started),
		"sessions": s.sessions.Len(),
	}
	if s.metrics != nil {
		summary, err := s.metrics.GetDailySummary(summaryDays)
		if err != nil {
			JSONError(c, s.logger, http.StatusInternalServerError, "Failed to read metrics", err.Error())
			return
		}
		report["mutations"] = summary
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) createSession(c *gin.Context) {
	sess := s.sessions.Create()
	if err := sess.Planner.Load(c.Request.Context()); err != nil {
		s.logger.Warn("initial week load failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"view":       sess.Planner.View(),
	})
}
