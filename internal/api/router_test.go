package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mrimoveis/leadcache/internal/app"
	"github.com/mrimoveis/leadcache/internal/cache"
	"github.com/mrimoveis/leadcache/internal/leads"
	"github.com/mrimoveis/leadcache/internal/middleware"
	"github.com/mrimoveis/leadcache/internal/monitoring"
	"github.com/mrimoveis/leadcache/internal/monitoring/checks"
	"github.com/mrimoveis/leadcache/internal/services"
)

type pageFetcher struct {
	pages map[int]leads.Table
}

func (f *pageFetcher) FetchPage(_ context.Context, page int) (leads.Table, error) {
	return f.pages[page], nil
}

func testConfig() *app.Config {
	return &app.Config{
		Server: app.ServerConfig{
			RateLimit: app.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Minute},
		},
		Leads: app.LeadsConfig{TTL: 30 * time.Minute},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
}

func newTestRouter(t *testing.T, cfg *app.Config) (*gin.Engine, *cache.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mon, err := monitoring.NewModule(monitoring.Options{DisableProcessCollector: true})
	require.NoError(t, err)
	monitoring.SetModule(mon)

	store := cache.NewMemoryStore()
	mon.Health().RegisterReadiness(checks.CacheStore(store, cfg.Leads.TTL, time.Second))

	fetcher := &pageFetcher{pages: map[int]leads.Table{
		1: leads.FromRecords([]leads.Record{
			{"id": json.Number("1"), "data_captura": "15/05/2024 09:00"},
			{"id": json.Number("2"), "data_captura": "15/05/2024 10:00"},
		}),
	}}
	svc, err := services.NewLeadService(store, fetcher, services.LeadServiceConfig{TTL: cfg.Leads.TTL, Location: time.UTC})
	require.NoError(t, err)

	router, err := NewRouter(cfg, svc, mon)
	require.NoError(t, err)
	return router, store
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouterServesLeads(t *testing.T) {
	router, store := newTestRouter(t, testConfig())

	rec := serve(router, http.MethodGet, "/api/leads")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "refreshed", rec.Header().Get(middleware.LeadsSourceHeader))
	require.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	require.Contains(t, rec.Body.String(), `"data_captura":"2024-05-15T09:00:00Z"`)
	require.Equal(t, 1, store.Writes())

	rec = serve(router, http.MethodGet, "/api/leads")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "fresh", rec.Header().Get(middleware.LeadsSourceHeader))
	require.Equal(t, 1, store.Writes())

	rec = serve(router, http.MethodGet, "/api/leads/status")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"present":true`)
	require.Contains(t, rec.Body.String(), `"leads":2`)
}

func TestRouterRateLimitsLeads(t *testing.T) {
	router, _ := newTestRouter(t, testConfig())

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/leads").Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/leads").Code)

	rec := serve(router, http.MethodGet, "/api/leads")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "TOO_MANY_REQUESTS")

	// other routes are unaffected
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)
}

func TestRouterHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, testConfig())

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/api/health/ready"} {
		rec := serve(router, http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.Contains(t, rec.Body.String(), `"success":true`, path)
	}

	rec := serve(router, http.MethodGet, "/health/ready")
	require.Contains(t, rec.Body.String(), "cache empty")
}

func TestRouterHealthDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Monitoring.Health.Enabled = false
	router, _ := newTestRouter(t, cfg)

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health").Code)
	require.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/health/ready").Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, testConfig())

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/leads").Code)

	rec := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "leadcache_leads_loads_total"), "expected leads metrics in /metrics output")
	require.Contains(t, body, "leadcache_api_latency_seconds")
}

func TestRouterMonitoringSummary(t *testing.T) {
	router, _ := newTestRouter(t, testConfig())

	rec := serve(router, http.MethodGet, "/api/monitoring/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"summary"`)
}

func TestRouterNotFound(t *testing.T) {
	router, _ := newTestRouter(t, testConfig())

	rec := serve(router, http.MethodGet, "/api/unknown")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestNewRouterValidatesDependencies(t *testing.T) {
	_, err := NewRouter(nil, nil, nil)
	require.Error(t, err)

	_, err = NewRouter(testConfig(), nil, nil)
	require.Error(t, err)
}
