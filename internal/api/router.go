package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/castarchive/castarchive/internal/api/archive"
	"github.com/castarchive/castarchive/internal/db"
	"github.com/castarchive/castarchive/pkg/logging"
)

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router sets up API routes
type Router struct {
	handler *JSONRPCHandler
	repo    *db.Repository
	health  []HealthChecker
	logger  *zap.Logger
}

// NewRouter creates a new API router over the archive. The health endpoint
// reports unavailable as soon as one of health fails.
func NewRouter(repo *db.Repository, health ...HealthChecker) *Router {
	router := &Router{
		handler: NewJSONRPCHandler(),
		repo:    repo,
		health:  health,
		logger:  logging.WithComponent("api-router"),
	}

	router.registerMethods()

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	// JSON-RPC endpoint
	engine.POST("/", r.handler.Handle)
}

// registerMethods registers all API methods
func (r *Router) registerMethods() {
	casts := archive.NewCastAPI(r.repo)
	users := archive.NewUserAPI(r.repo)

	r.handler.RegisterMethod("archive.get_cast", casts.GetCast)
	r.handler.RegisterMethod("archive.list_user_casts", casts.ListUserCasts)
	r.handler.RegisterMethod("archive.count_replies", casts.CountReplies)
	r.handler.RegisterMethod("archive.get_user", users.GetUser)
	r.handler.RegisterMethod("archive.get_stats", users.GetStats)

	r.logger.Debug("Registered JSON-RPC methods", zap.Int("methods", r.handler.Methods()))
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	for _, check := range r.health {
		if err := check.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "UNAVAILABLE",
				"service": "castarchive-api",
				"error":   err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "castarchive-api",
	})
}
