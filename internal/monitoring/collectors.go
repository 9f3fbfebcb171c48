package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	apiLatency          *prometheus.HistogramVec
	leadsLoads          *prometheus.CounterVec
	leadsLoadDuration   *prometheus.HistogramVec
	leadsReturned       prometheus.Histogram
	crmPageFetches      *prometheus.CounterVec
	crmPageLatency      prometheus.Histogram
	cacheReads          *prometheus.CounterVec
	cacheWrites         *prometheus.CounterVec
	cacheEntryLeads     prometheus.Gauge
	cacheEntryTimestamp prometheus.Gauge
	maintenanceRuns     *prometheus.CounterVec
	maintenanceDuration *prometheus.HistogramVec
	maintenanceLastRun  *prometheus.GaugeVec
}

func newCollectors(namespace string) *collectors {
	buckets := prometheus.DefBuckets
	// a full refresh walks up to max_pages sequential requests
	loadBuckets := []float64{
		0.005, 0.05, 0.25, 1, // cache hits
		5, 15, 30, 60, // single pages
		120, 300, 600,
	}
	sizeBuckets := prometheus.ExponentialBuckets(1, 4, 8)

	return &collectors{
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "API endpoint latency",
				Buckets:   buckets,
			},
			[]string{"method", "path", "status"},
		),
		leadsLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "leads_loads_total",
				Help:      "Lead loads grouped by how they were served (fresh, refreshed, stale_fallback, empty)",
			},
			[]string{"outcome"},
		),
		leadsLoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "leads_load_duration_seconds",
				Help:      "Duration of lead loads including CRM pagination",
				Buckets:   loadBuckets,
			},
			[]string{"outcome"},
		),
		leadsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "leads_returned",
				Help:      "Number of leads returned per load",
				Buckets:   sizeBuckets,
			},
		),
		crmPageFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "crm_page_fetches_total",
				Help:      "CRM page requests grouped by result",
			},
			[]string{"result"},
		),
		crmPageLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "crm_page_latency_seconds",
				Help:      "Duration of a single CRM page request",
				Buckets:   buckets,
			},
		),
		cacheReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_reads_total",
				Help:      "Cache store reads grouped by result",
			},
			[]string{"result"},
		),
		cacheWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_writes_total",
				Help:      "Cache store writes grouped by result",
			},
			[]string{"result"},
		),
		cacheEntryLeads: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_entry_leads",
				Help:      "Number of leads held by the cache entry",
			},
		),
		cacheEntryTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cache_entry_timestamp_seconds",
				Help:      "Capture time of the cache entry (seconds since epoch)",
			},
		),
		maintenanceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "maintenance_runs_total",
				Help:      "Maintenance job executions",
			},
			[]string{"job", "result"},
		),
		maintenanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "maintenance_duration_seconds",
				Help:      "Maintenance job duration",
				Buckets:   buckets,
			},
			[]string{"job"},
		),
		maintenanceLastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "maintenance_last_success_timestamp",
				Help:      "Timestamp of the last successful maintenance run (seconds since epoch)",
			},
			[]string{"job"},
		),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.apiLatency,
		c.leadsLoads,
		c.leadsLoadDuration,
		c.leadsReturned,
		c.crmPageFetches,
		c.crmPageLatency,
		c.cacheReads,
		c.cacheWrites,
		c.cacheEntryLeads,
		c.cacheEntryTimestamp,
		c.maintenanceRuns,
		c.maintenanceDuration,
		c.maintenanceLastRun,
	}
}

// observeDuration records a duration in seconds on the supplied histogram observer.
func observeDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}
