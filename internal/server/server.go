// Package server exposes the matching flows over HTTP. The endpoints mirror
// the web frontend's form posts, so ids arrive as form fields rather than
// JSON bodies.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mentormatch/mentormatch/internal/matching"
)

// Matcher is the slice of the matching service the handlers need.
type Matcher interface {
	MatchTopic(ctx context.Context, topicID int64, targetRole string) *matching.TopicMatch
	MatchRole(ctx context.Context, roleID int64) *matching.RoleMatch
	MatchStudent(ctx context.Context, studentUserID int64) *matching.StudentMatch
	MatchSupervisor(ctx context.Context, supervisorUserID int64) *matching.SupervisorMatch
}

// Pinger reports whether the datastore is reachable. The pgx pool satisfies
// this directly.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server carries the router and its dependencies.
type Server struct {
	matcher Matcher
	pinger  Pinger
	logger  *zap.Logger
	engine  *gin.Engine
}

// New builds the router. Matching envelopes carry their own status field, so
// handlers return 200 even for domain errors; 400 is reserved for requests
// the handler cannot parse at all.
func New(matcher Matcher, pinger Pinger, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{matcher: matcher, pinger: pinger, logger: logger, engine: gin.New()}
	s.engine.Use(gin.Recovery(), s.requestLog())

	api := s.engine.Group("/api")
	api.POST("/match-topic", s.matchTopic)
	api.POST("/match-role", s.matchRole)
	api.POST("/match-student", s.matchStudent)
	api.POST("/match-supervisor", s.matchSupervisor)

	s.engine.GET("/healthz", s.healthz)

	return s
}

// healthz pings the database so an instance with a dead pool reports
// unhealthy instead of idling behind the load balancer.
func (s *Server) healthz(c *gin.Context) {
	if s.pinger != nil {
		if err := s.pinger.Ping(c.Request.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Handler exposes the router for tests and custom http.Server setups.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.engine.Run(addr)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func (s *Server) matchTopic(c *gin.Context) {
	topicID, ok := formID(c, "topic_id")
	if !ok {
		return
	}
	targetRole := c.PostForm("target_role")
	c.JSON(http.StatusOK, s.matcher.MatchTopic(c.Request.Context(), topicID, targetRole))
}

func (s *Server) matchRole(c *gin.Context) {
	roleID, ok := formID(c, "role_id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.matcher.MatchRole(c.Request.Context(), roleID))
}

func (s *Server) matchStudent(c *gin.Context) {
	userID, ok := formID(c, "student_user_id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.matcher.MatchStudent(c.Request.Context(), userID))
}

func (s *Server) matchSupervisor(c *gin.Context) {
	userID, ok := formID(c, "supervisor_user_id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.matcher.MatchSupervisor(c.Request.Context(), userID))
}

// formID parses a required positive integer form field, replying 400 itself
// when the field is missing or malformed.
func formID(c *gin.Context, field string) (int64, bool) {
	raw := c.PostForm(field)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": field + " must be a positive integer",
		})
		return 0, false
	}
	return id, true
}
