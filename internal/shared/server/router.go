package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"justicebench/internal/analysis"
	"justicebench/internal/batch"
	"justicebench/internal/cases"
	"justicebench/internal/sessions"
	"justicebench/internal/shared/config"
	"justicebench/internal/shared/metrics"
	"justicebench/internal/shared/server/middleware"
	"justicebench/internal/shared/server/respond"
)

// RouterDeps carries the handlers mounted under /api/v1.
type RouterDeps struct {
	Config          config.Config
	CaseHandler     *cases.Handler
	BatchHandler    *batch.Handler
	AnalysisHandler *analysis.Handler
	SessionHandler  *sessions.Handler
	Limiter         *middleware.RateLimiter
}

var defaultRateRules = map[string]middleware.RateLimitRule{
	middleware.GroupSubmit:  {Rate: 1, Burst: 10},
	middleware.GroupPolling: {Rate: 5, Burst: 20},
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules:    defaultRateRules,
		GroupFor: rateGroup,
		Limiter:  deps.Limiter,
	}))
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.CaseHandler != nil {
		deps.CaseHandler.RegisterRoutes(api)
	}
	if deps.BatchHandler != nil {
		deps.BatchHandler.RegisterRoutes(api)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.SessionHandler != nil {
		deps.SessionHandler.RegisterRoutes(api)
	}

	return r
}

// rateGroup buckets progress polling apart from submissions and other
// model-backed calls. Everything else is unlimited.
func rateGroup(c *gin.Context) string {
	path := c.FullPath()
	switch {
	case c.Request.Method == http.MethodGet && strings.HasSuffix(path, "/progress"):
		return middleware.GroupPolling
	case c.Request.Method == http.MethodPost && (path == "/api/v1/batches" || path == "/api/v1/analyses"):
		return middleware.GroupSubmit
	case c.Request.Method == http.MethodPost && isModelRoute(path):
		return middleware.GroupSubmit
	default:
		return "UNLIMITED"
	}
}

func isModelRoute(path string) bool {
	for _, suffix := range []string{"/mask", "/questions", "/questions/generate", "/answers/:index", "/evaluations/:index"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
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
