package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bills-backend/internal/drafts"
	"bills-backend/internal/jobs"
	"bills-backend/internal/shared/config"
	"bills-backend/internal/shared/metrics"
	"bills-backend/internal/shared/server/middleware"
	"bills-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router mounts. Routes stay thin;
// all construction happens in bootstrap.
type RouterDeps struct {
	Config        config.Config
	JobsHandler   *jobs.Handler
	DraftsHandler *drafts.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(cfg.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			GroupFor: rateLimitGroup,
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: 5, Burst: 20},
				// Status polling from the UI is chatty.
				"POLLING": {Rate: 20, Burst: 60},
			},
		}),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())
	registerMeRoutes(api)
	if deps.JobsHandler != nil {
		deps.JobsHandler.RegisterRoutes(api)
	}
	if deps.DraftsHandler != nil {
		deps.DraftsHandler.RegisterRoutes(api)
	}

	if deps.JobsHandler != nil && strings.TrimSpace(cfg.AdminToken) != "" {
		admin := api.Group("/admin", adminAuth(cfg.AdminToken))
		deps.JobsHandler.RegisterAdminRoutes(admin)
	}

	return r
}

// rateLimitGroup routes job status polling into its own bucket.
func rateLimitGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodGet {
		return "DEFAULT"
	}
	switch c.FullPath() {
	case "/api/v1/jobs/:id", "/api/v1/jobs/updates", "/api/v1/jobs/:id/documents":
		return "POLLING"
	}
	return "DEFAULT"
}

// adminAuth guards operational routes with a shared token.
func adminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := strings.TrimSpace(c.GetHeader("X-Admin-Token"))
		if given == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			respond.Error(c, http.StatusForbidden, "forbidden", "invalid admin token", nil)
			return
		}
		c.Next()
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
