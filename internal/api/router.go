package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrimoveis/leadcache/internal/app"
	"github.com/mrimoveis/leadcache/internal/handlers"
	"github.com/mrimoveis/leadcache/internal/middleware"
	"github.com/mrimoveis/leadcache/internal/monitoring"
)

// NewRouter builds the Gin engine, wires middleware and registers the leads, health,
// monitoring and metrics routes.
func NewRouter(cfg *app.Config, leads handlers.LeadLoader, mon *monitoring.Module) (*gin.Engine, error) {
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}
	if leads == nil {
		return nil, errors.New("lead service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	registerHealthRoutes(r, cfg, mon)

	leadsHandler, err := handlers.NewLeadsHandler(leads)
	if err != nil {
		return nil, err
	}

	api := r.Group("/api")
	registerLeadRoutes(api, leadsHandler, cfg.Server.RateLimit)
	registerMonitoringRoutes(api, handlers.NewMonitoringHandler(mon, cfg))

	if cfg.Monitoring.Prometheus.Enabled && mon != nil {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(mon.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func registerLeadRoutes(api *gin.RouterGroup, handler *handlers.LeadsHandler, limit app.RateLimitConfig) {
	group := api.Group("/leads")
	if limit.Enabled && limit.Requests > 0 && limit.Window > 0 {
		group.Use(middleware.RateLimit(limit.Requests, limit.Window))
	}

	group.GET("", handler.List)
	group.GET("/status", handler.Status)
}
