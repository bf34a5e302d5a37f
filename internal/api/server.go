// Package api exposes the ordering engine over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"maitred/internal/apperr"
	"maitred/internal/conversation"
	"maitred/internal/feedback"
	"maitred/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Turns is the orchestrator as seen by transports
type Turns interface {
	HandleTurn(ctx context.Context, in conversation.Turn) (*conversation.TurnResult, error)
	Reset(ctx context.Context, tenantID, conversationID string) error
}

// Feedback records verdicts on extractions and reports accuracy
type Feedback interface {
	SubmitFeedback(ctx context.Context, tenantID, intentID string, verdict models.Feedback) (models.Feedback, error)
	Accuracy(ctx context.Context, tenantID string, window time.Duration) (feedback.Accuracy, error)
}

// Options configure the router
type Options struct {
	// JWTSecret enables tenant auth when set
	JWTSecret string
	// Health reports readiness of backing services; nil means always healthy
	Health func(ctx context.Context) error
}

// Server represents the HTTP API
type Server struct {
	Router   *gin.Engine
	turns    Turns
	feedback Feedback
	opts     Options
	log      zerolog.Logger
}

// NewServer creates the router with all routes registered
func NewServer(turns Turns, fb Feedback, opts Options, log zerolog.Logger) *Server {
	router := gin.New()
	log = log.With().Str("component", "api").Logger()
	router.Use(gin.Recovery(), RequestLogger(log))

	s := &Server{
		Router:   router,
		turns:    turns,
		feedback: fb,
		opts:     opts,
		log:      log,
	}
	s.setupRoutes()
	return s
}

// Auth returns the tenant auth middleware for routes mounted by other transports
func (s *Server) Auth() gin.HandlerFunc {
	return TenantAuth(s.opts.JWTSecret)
}

func (s *Server) setupRoutes() {
	s.Router.GET("/health", s.health)

	tenants := s.Router.Group("/api/v1/tenants/:tenant", s.Auth())
	{
		tenants.POST("/conversations/:conversation/turns", s.handleTurn)
		tenants.POST("/conversations/:conversation/reset", s.resetConversation)
		tenants.POST("/payments/outcome", s.paymentOutcome)

		tenants.POST("/intents/:id/feedback", s.submitFeedback)
		tenants.GET("/intents/accuracy", s.accuracy)
	}
}

func (s *Server) health(c *gin.Context) {
	if s.opts.Health != nil {
		if err := s.opts.Health(c.Request.Context()); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps error kinds to HTTP status codes
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
