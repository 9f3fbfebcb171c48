package monitoring

import (
	"strings"
	"time"
)

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	module.metrics.apiLatency.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordLeadsLoad records a completed lead load and how it was served.
func RecordLeadsLoad(outcome string, count int, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	label := normalizeLabel(outcome)
	module.metrics.leadsLoads.WithLabelValues(label).Inc()
	observeDuration(module.metrics.leadsLoadDuration.WithLabelValues(label), duration)
	if count < 0 {
		count = 0
	}
	module.metrics.leadsReturned.Observe(float64(count))
	module.stats.recordLoad(label, count, duration)
}

// RecordCRMPageFetch records a single CRM page request. Result is "ok", "empty", or
// the failure kind.
func RecordCRMPageFetch(result string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	label := normalizeLabel(result)
	module.metrics.crmPageFetches.WithLabelValues(label).Inc()
	observeDuration(module.metrics.crmPageLatency, duration)
	module.stats.recordPageFetch(label)
}

// RecordCacheRead records a cache store read result (fresh, stale, miss, corrupt, error).
func RecordCacheRead(result string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.cacheReads.WithLabelValues(normalizeLabel(result)).Inc()
}

// RecordCacheWrite records a cache store write result.
func RecordCacheWrite(result, message string) {
	module := ensureModule()
	if module == nil {
		return
	}
	label := normalizeLabel(result)
	module.metrics.cacheWrites.WithLabelValues(label).Inc()
	module.stats.recordCacheWrite(label, strings.TrimSpace(message))
}

// SetCacheEntry publishes the size and capture time of the current cache entry.
func SetCacheEntry(count int, capturedAt time.Time) {
	module := ensureModule()
	if module == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	module.metrics.cacheEntryLeads.Set(float64(count))
	if !capturedAt.IsZero() {
		module.metrics.cacheEntryTimestamp.Set(float64(capturedAt.Unix()))
	}
	module.stats.recordCacheEntry(count, capturedAt)
}

// RecordMaintenanceRun records the completion of a maintenance job.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	if jobID == "" {
		jobID = "unknown"
	}
	result = normalizeLabel(result)
	if result == "" {
		result = "unknown"
	}
	module.metrics.maintenanceRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(jobID), duration)
	if result == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(jobID).Set(float64(time.Now().Unix()))
	}
	stats := module.stats.maintenanceEntry(jobID)
	stats.record(result, strings.TrimSpace(message), duration)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizePath(path string) string {
	if path == "" {
		return ""
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "/" {
		return "root"
	}
	return normalizePath(path)
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	path = strings.ReplaceAll(path, " ", "_")
	if path == "" {
		return "root"
	}
	return path
}
