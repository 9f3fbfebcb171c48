package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	loadsFresh     atomic.Uint64
	loadsRefreshed atomic.Uint64
	loadsStale     atomic.Uint64
	loadsEmpty     atomic.Uint64
	lastOutcome    atomic.Value // string
	lastCount      atomic.Int64
	lastDuration   atomic.Int64 // nanoseconds
	lastLoadAt     atomic.Int64 // unix nano

	pagesOK     atomic.Uint64
	pagesEmpty  atomic.Uint64
	pagesFailed atomic.Uint64
	lastFailure atomic.Value // string

	entryLeads     atomic.Int64
	entryUpdatedAt atomic.Int64 // unix nano
	writeFailures  atomic.Uint64
	lastWriteError atomic.Value // string

	maintenance sync.Map // string -> *maintenanceStats
}

func newStatStore() *statStore {
	store := &statStore{}
	store.lastOutcome.Store("")
	store.lastFailure.Store("")
	store.lastWriteError.Store("")
	return store
}

func (s *statStore) cloneMaintenance() []MaintenanceJobSummary {
	summaries := []MaintenanceJobSummary{}
	s.maintenance.Range(func(key, value any) bool {
		job := key.(string)
		stats := value.(*maintenanceStats)
		summaries = append(summaries, stats.snapshot(job))
		return true
	})
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Job < summaries[j].Job })
	return summaries
}

func (s *statStore) summary() Summary {
	lastOutcome, _ := s.lastOutcome.Load().(string)
	lastFailure, _ := s.lastFailure.Load().(string)
	lastWriteError, _ := s.lastWriteError.Load().(string)

	return Summary{
		GeneratedAt: time.Now(),
		Leads: LeadsSummary{
			Fresh:         s.loadsFresh.Load(),
			Refreshed:     s.loadsRefreshed.Load(),
			StaleFallback: s.loadsStale.Load(),
			Empty:         s.loadsEmpty.Load(),
			LastOutcome:   lastOutcome,
			LastCount:     s.lastCount.Load(),
			LastDuration:  time.Duration(s.lastDuration.Load()),
			LastLoadAt:    unixNanoTime(s.lastLoadAt.Load()),
		},
		CRM: CRMSummary{
			PagesOK:     s.pagesOK.Load(),
			PagesEmpty:  s.pagesEmpty.Load(),
			PagesFailed: s.pagesFailed.Load(),
			LastFailure: lastFailure,
		},
		Cache: CacheSummary{
			EntryLeads:     s.entryLeads.Load(),
			EntryUpdatedAt: unixNanoTime(s.entryUpdatedAt.Load()),
			WriteFailures:  s.writeFailures.Load(),
			LastWriteError: lastWriteError,
		},
		Maintenance: MaintenanceSummary{
			Jobs: s.cloneMaintenance(),
		},
	}
}

func (s *statStore) recordLoad(outcome string, count int, duration time.Duration) {
	switch outcome {
	case "fresh":
		s.loadsFresh.Add(1)
	case "refreshed":
		s.loadsRefreshed.Add(1)
	case "stale_fallback":
		s.loadsStale.Add(1)
	default:
		s.loadsEmpty.Add(1)
	}
	if duration < 0 {
		duration = 0
	}
	s.lastOutcome.Store(outcome)
	s.lastCount.Store(int64(count))
	s.lastDuration.Store(int64(duration))
	s.lastLoadAt.Store(time.Now().UnixNano())
}

func (s *statStore) recordPageFetch(result string) {
	switch result {
	case "ok":
		s.pagesOK.Add(1)
	case "empty":
		s.pagesEmpty.Add(1)
	default:
		s.pagesFailed.Add(1)
		s.lastFailure.Store(result)
	}
}

func (s *statStore) recordCacheWrite(result, message string) {
	if result == "success" {
		return
	}
	s.writeFailures.Add(1)
	s.lastWriteError.Store(message)
}

func (s *statStore) recordCacheEntry(count int, capturedAt time.Time) {
	s.entryLeads.Store(int64(count))
	if !capturedAt.IsZero() {
		s.entryUpdatedAt.Store(capturedAt.UnixNano())
	}
}

func (s *statStore) maintenanceEntry(job string) *maintenanceStats {
	value, ok := s.maintenance.Load(job)
	if ok {
		return value.(*maintenanceStats)
	}
	stats := &maintenanceStats{}
	actual, _ := s.maintenance.LoadOrStore(job, stats)
	return actual.(*maintenanceStats)
}

func unixNanoTime(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

type maintenanceStats struct {
	lastStatus           atomic.Value // string
	lastError            atomic.Value // string
	lastRun              atomic.Int64 // unix nano
	lastDuration         atomic.Int64 // nanoseconds
	consecutiveFailures  atomic.Uint64
	totalRuns            atomic.Uint64
	lastSuccessfulRun    atomic.Int64
	consecutiveSuccesses atomic.Uint64
}

func (m *maintenanceStats) snapshot(job string) MaintenanceJobSummary {
	status, _ := m.lastStatus.Load().(string)
	errMsg, _ := m.lastError.Load().(string)

	return MaintenanceJobSummary{
		Job:                 job,
		LastStatus:          status,
		LastRunAt:           unixNanoTime(m.lastRun.Load()),
		LastDuration:        time.Duration(m.lastDuration.Load()),
		LastError:           errMsg,
		ConsecutiveFailures: m.consecutiveFailures.Load(),
		ConsecutiveSuccess:  m.consecutiveSuccesses.Load(),
		LastSuccessAt:       unixNanoTime(m.lastSuccessfulRun.Load()),
		TotalRuns:           m.totalRuns.Load(),
	}
}

func (m *maintenanceStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	m.lastStatus.Store(result)
	m.lastRun.Store(now.UnixNano())
	m.lastDuration.Store(int64(duration))
	m.totalRuns.Add(1)

	switch result {
	case "success":
		m.lastError.Store("")
		m.consecutiveFailures.Store(0)
		m.consecutiveSuccesses.Add(1)
		m.lastSuccessfulRun.Store(now.UnixNano())
	default:
		m.lastError.Store(message)
		m.consecutiveFailures.Add(1)
		m.consecutiveSuccesses.Store(0)
	}
}
