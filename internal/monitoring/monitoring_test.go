package monitoring_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mrimoveis/leadcache/internal/cache"
	"github.com/mrimoveis/leadcache/internal/database/testutil"
	"github.com/mrimoveis/leadcache/internal/leads"
	"github.com/mrimoveis/leadcache/internal/monitoring"
	"github.com/mrimoveis/leadcache/internal/monitoring/checks"
)

func setupModule(t *testing.T) *monitoring.Module {
	t.Helper()

	mod, err := monitoring.NewModule(monitoring.Options{DisableProcessCollector: true})
	require.NoError(t, err)
	monitoring.SetModule(mod)
	return mod
}

func TestSummaryAggregatesMetrics(t *testing.T) {
	setupModule(t)

	monitoring.RecordLeadsLoad("fresh", 10, time.Millisecond)
	monitoring.RecordLeadsLoad("refreshed", 1000, 3*time.Second)
	monitoring.RecordLeadsLoad("stale_fallback", 50, time.Second)
	monitoring.RecordCRMPageFetch("ok", time.Second)
	monitoring.RecordCRMPageFetch("empty", time.Second)
	monitoring.RecordCRMPageFetch("transport", time.Second)
	monitoring.RecordCacheWrite("failure", "disk full")
	monitoring.SetCacheEntry(1000, time.Now())
	monitoring.RecordMaintenanceRun("temp_sweep", "success", "", time.Second)

	summary := monitoring.Snapshot()
	require.Equal(t, uint64(1), summary.Leads.Fresh)
	require.Equal(t, uint64(1), summary.Leads.Refreshed)
	require.Equal(t, uint64(1), summary.Leads.StaleFallback)
	require.Equal(t, "stale_fallback", summary.Leads.LastOutcome)
	require.Equal(t, int64(50), summary.Leads.LastCount)
	require.Equal(t, uint64(1), summary.CRM.PagesOK)
	require.Equal(t, uint64(1), summary.CRM.PagesEmpty)
	require.Equal(t, uint64(1), summary.CRM.PagesFailed)
	require.Equal(t, "transport", summary.CRM.LastFailure)
	require.Equal(t, uint64(1), summary.Cache.WriteFailures)
	require.Equal(t, "disk full", summary.Cache.LastWriteError)
	require.Equal(t, int64(1000), summary.Cache.EntryLeads)
	require.Len(t, summary.Maintenance.Jobs, 1)
}

func TestHandlerExposesLeadMetrics(t *testing.T) {
	mod := setupModule(t)
	monitoring.RecordLeadsLoad("refreshed", 3, time.Second)

	rec := httptest.NewRecorder()
	mod.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `leadcache_leads_loads_total{outcome="refreshed"} 1`)
}

func TestHealthManagerEvaluate(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
}

func TestHealthManagerRecoversPanics(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.NewCheck("boom", func(ctx context.Context) monitoring.ProbeResult {
		panic("probe exploded")
	}))

	report := manager.EvaluateLiveness(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Equal(t, "probe exploded", report.Checks[0].Details)
	require.Equal(t, "boom", report.Checks[0].Component)
}

func TestMaintenanceCheck(t *testing.T) {
	setupModule(t)

	monitoring.RecordMaintenanceRun("temp_sweep", "success", "", time.Second)
	monitoring.RecordMaintenanceRun("cache_probe", "failure", "timeout", time.Second)

	check := checks.Maintenance(0)
	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.NotEmpty(t, result.Details)
}

func TestCacheStoreCheck(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore()
	check := checks.CacheStore(store, 30*time.Minute, time.Second)

	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Equal(t, "cache empty", result.Details)

	require.NoError(t, store.Write(context.Background(), cache.Entry{
		Timestamp: time.Now(),
		Leads:     leads.FromRecords([]leads.Record{{"id": "1"}}),
	}))
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Contains(t, result.Details, "1 leads, fresh")
}

type corruptStore struct{ err error }

func (s corruptStore) Read(context.Context) (*cache.Entry, error) { return nil, s.err }
func (s corruptStore) Write(context.Context, cache.Entry) error   { return s.err }

func TestCacheStoreCheckFailures(t *testing.T) {
	t.Parallel()

	result := checks.CacheStore(corruptStore{err: cache.ErrCorrupt}, time.Minute, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)

	result = checks.CacheStore(corruptStore{err: errors.New("permission denied")}, time.Minute, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)

	result = checks.CacheStore(nil, time.Minute, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestBackendCheck(t *testing.T) {
	t.Parallel()

	require.Equal(t, monitoring.StatusUp, checks.Backend("redis", nil, 0).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusUp, checks.Backend("redis", stubPinger{}, 0).Run(context.Background()).Status)

	result := checks.Backend("memcache", stubPinger{err: context.DeadlineExceeded}, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Equal(t, "memcache", result.Component)
}

func TestDatabaseCheck(t *testing.T) {
	t.Parallel()

	db := testutil.MustOpenTestDB(t)
	require.Equal(t, monitoring.StatusUp, checks.Database(db, time.Second).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusDown, checks.Database(nil, time.Second).Run(context.Background()).Status)
}
