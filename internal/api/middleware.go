package api

import (
	"net/http"
	"sync"
	"time"

	"meal-scheduler/internal/planner"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SessionHeader carries the id issued by POST /api/sessions.
const SessionHeader = "X-Session-ID"

const plannerKey = "planner"

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()))
	}
}

// CORS allows the browser front end to call the API from another origin.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", SessionHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	})
}

// rateLimiterStore holds one limiter per client IP.
type rateLimiterStore struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func (s *rateLimiterStore) getLimiter(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(s.limit, s.burst)
		s.limiters[ip] = limiter
	}
	return limiter
}

// RateLimitMiddleware limits requests per client IP.
func RateLimitMiddleware(limit rate.Limit, burst int, logger *zap.Logger) gin.HandlerFunc {
	store := &rateLimiterStore{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !store.getLimiter(ip).Allow() {
			logger.Warn("Rate limit exceeded", zap.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{Message: "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}

// SessionMiddleware resolves the session header to its planner.
func SessionMiddleware(sessions *planner.Sessions, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(SessionHeader)
		if id == "" {
			JSONError(c, logger, http.StatusUnauthorized, "Missing session", SessionHeader+" header is required")
			return
		}
		sess, ok := sessions.Get(id)
		if !ok {
			JSONError(c, logger, http.StatusUnauthorized, "Unknown or expired session", "")
			return
		}
		c.Set(plannerKey, sess.Planner)
		c.Next()
	}
}

func plannerFrom(c *gin.Context) *planner.Planner {
	return c.MustGet(plannerKey).(*planner.Planner)
}
