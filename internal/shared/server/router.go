package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"tuning-backend/internal/analysis"
	"tuning-backend/internal/feedback"
	"tuning-backend/internal/imports"
	"tuning-backend/internal/proposals"
	"tuning-backend/internal/services/health"
	"tuning-backend/internal/settings"
	"tuning-backend/internal/shared/config"
	"tuning-backend/internal/shared/metrics"
	"tuning-backend/internal/shared/server/middleware"
	"tuning-backend/internal/shared/server/respond"
)

const apiPrefix = "/api/v1"

// RouterDeps are the handlers mounted under /api/v1.
type RouterDeps struct {
	Config          config.Config
	ImportHandler   *imports.Handler
	AnalysisHandler *analysis.Handler
	ProposalHandler *proposals.Handler
	FeedbackHandler *feedback.Handler
	SettingsHandler *settings.Handler
	Health          *health.Service
	Gatherer        prometheus.Gatherer
	RateLimiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	cfg := deps.Config

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(apiPrefix+"/health", apiPrefix+"/metrics"),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rateLimitRules(cfg.RateLimits),
			GroupFor: rateLimitGroup,
			Limiter:  deps.RateLimiter,
		}),
	)

	api := r.Group(apiPrefix)
	api.GET("/health", func(c *gin.Context) {
		body, ok := deps.Health.Status(c.Request.Context())
		if !ok {
			respond.JSON(c, http.StatusServiceUnavailable, body)
			return
		}
		respond.JSON(c, http.StatusOK, body)
	})
	if deps.Gatherer != nil {
		api.GET("/metrics", metrics.Handler(deps.Gatherer))
	}
	registerMeRoutes(api, cfg.ReviewerRole)

	if deps.ImportHandler != nil {
		deps.ImportHandler.RegisterRoutes(api)
	}
	if deps.FeedbackHandler != nil {
		deps.FeedbackHandler.RegisterRoutes(api)
	}
	if deps.SettingsHandler != nil {
		deps.SettingsHandler.RegisterRoutes(api)
	}

	reviewer := api.Group("")
	reviewer.Use(middleware.RequireRole(cfg.ReviewerRole))
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(reviewer)
	}
	if deps.ProposalHandler != nil {
		deps.ProposalHandler.RegisterRoutes(reviewer)
	}
	if deps.ImportHandler != nil {
		deps.ImportHandler.RegisterAdminRoutes(reviewer)
	}

	return r
}

func rateLimitRules(in map[string]config.RateLimit) map[string]middleware.RateLimitRule {
	out := make(map[string]middleware.RateLimitRule, len(in))
	for group, rule := range in {
		out[strings.ToUpper(group)] = middleware.RateLimitRule{Rate: rule.Rate, Burst: rule.Burst}
	}
	return out
}

// rateLimitGroup buckets the slow endpoints separately from ordinary reads.
func rateLimitGroup(c *gin.Context) string {
	path := c.Request.URL.Path
	switch {
	case strings.HasPrefix(path, apiPrefix+"/analysis/"):
		return "ANALYSIS"
	case c.Request.Method == http.MethodPost && path == apiPrefix+"/imports":
		return "IMPORT"
	default:
		return "DEFAULT"
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
