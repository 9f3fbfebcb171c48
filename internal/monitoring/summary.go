package monitoring

import "time"

// Summary surfaces aggregated monitoring data for operators.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Leads       LeadsSummary       `json:"leads"`
	CRM         CRMSummary         `json:"crm"`
	Cache       CacheSummary       `json:"cache"`
	Maintenance MaintenanceSummary `json:"maintenance"`
}

type LeadsSummary struct {
	Fresh         uint64        `json:"fresh"`
	Refreshed     uint64        `json:"refreshed"`
	StaleFallback uint64        `json:"stale_fallback"`
	Empty         uint64        `json:"empty"`
	LastOutcome   string        `json:"last_outcome,omitempty"`
	LastCount     int64         `json:"last_count"`
	LastDuration  time.Duration `json:"last_duration"`
	LastLoadAt    time.Time     `json:"last_load_at"`
}

type CRMSummary struct {
	PagesOK     uint64 `json:"pages_ok"`
	PagesEmpty  uint64 `json:"pages_empty"`
	PagesFailed uint64 `json:"pages_failed"`
	LastFailure string `json:"last_failure,omitempty"`
}

type CacheSummary struct {
	EntryLeads     int64     `json:"entry_leads"`
	EntryUpdatedAt time.Time `json:"entry_updated_at"`
	WriteFailures  uint64    `json:"write_failures"`
	LastWriteError string    `json:"last_write_error,omitempty"`
}

type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	if module := ensureModule(); module != nil && module.stats != nil {
		return module.stats.summary()
	}
	return Summary{GeneratedAt: time.Now()}
}
