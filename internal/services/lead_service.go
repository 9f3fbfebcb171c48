package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mrimoveis/leadcache/internal/cache"
	"github.com/mrimoveis/leadcache/internal/crm"
	"github.com/mrimoveis/leadcache/internal/leads"
	"github.com/mrimoveis/leadcache/internal/monitoring"
	"github.com/mrimoveis/leadcache/pkg/logger"
)

const (
	// DefaultLeadTTL is how long a cache entry is served without asking the CRM.
	DefaultLeadTTL = 30 * time.Minute
	// DefaultLeadLimit caps the number of leads kept per refresh.
	DefaultLeadLimit = 1000
	// DefaultMaxPages caps the number of CRM pages requested per refresh.
	DefaultMaxPages = 100
)

// LoadOutcome describes how a load was served.
type LoadOutcome string

const (
	// OutcomeFresh means the cache entry was younger than the TTL; the CRM was not called.
	OutcomeFresh LoadOutcome = "fresh"
	// OutcomeRefreshed means the CRM returned data which replaced the cache entry.
	OutcomeRefreshed LoadOutcome = "refreshed"
	// OutcomeStaleFallback means the CRM returned nothing and an older entry was served.
	OutcomeStaleFallback LoadOutcome = "stale_fallback"
	// OutcomeEmpty means the CRM returned nothing and no cache entry exists.
	OutcomeEmpty LoadOutcome = "empty"
)

// LoadResult is the detailed outcome of a load.
type LoadResult struct {
	Leads   leads.Table
	Outcome LoadOutcome
	// CachedAt is the capture time of the returned table; zero for OutcomeEmpty.
	CachedAt time.Time
	// PagesFetched counts CRM requests made, including the one that ended pagination.
	PagesFetched int
	// FetchErr is the failure that ended pagination, if any.
	FetchErr error
	// WriteErr is set when the refreshed table could not be persisted.
	WriteErr error
}

// CacheStatus describes the stored entry without triggering a fetch.
type CacheStatus struct {
	Present  bool
	Fresh    bool
	CachedAt time.Time
	Age      time.Duration
	Leads    int
	TTL      time.Duration
	Err      error
}

// LeadServiceConfig tunes freshness and pagination.
type LeadServiceConfig struct {
	TTL      time.Duration
	Limit    int
	MaxPages int
	// Location is used for capture dates without a zone.
	Location *time.Location
}

// LeadServiceOption customises a LeadService.
type LeadServiceOption func(*LeadService)

// WithClock overrides the clock used for freshness checks and entry timestamps.
func WithClock(now func() time.Time) LeadServiceOption {
	return func(s *LeadService) {
		if now != nil {
			s.timeNow = now
		}
	}
}

// WithLeadLogger overrides the service logger.
func WithLeadLogger(log *zap.Logger) LeadServiceOption {
	return func(s *LeadService) {
		if log != nil {
			s.log = log
		}
	}
}

// LeadService serves the leads table from the cache store, refreshing it from the CRM
// when the entry is missing or older than the TTL and falling back to the stale entry
// when the CRM has nothing to give.
type LeadService struct {
	store   cache.Store
	fetcher crm.Fetcher
	cfg     LeadServiceConfig
	timeNow func() time.Time
	log     *zap.Logger
	group   singleflight.Group
}

// NewLeadService constructs the service once store and fetcher are supplied.
func NewLeadService(store cache.Store, fetcher crm.Fetcher, cfg LeadServiceConfig, opts ...LeadServiceOption) (*LeadService, error) {
	if store == nil {
		return nil, errors.New("lead service: cache store is required")
	}
	if fetcher == nil {
		return nil, errors.New("lead service: fetcher is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultLeadTTL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLeadLimit
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	svc := &LeadService{
		store:   store,
		fetcher: fetcher,
		cfg:     cfg,
		timeNow: time.Now,
		log:     logger.WithModule("leads"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Config returns the effective configuration.
func (s *LeadService) Config() LeadServiceConfig {
	return s.cfg
}

// LoadLeads returns the best available leads table: fresh cache, newly fetched, stale
// cache, or empty, in that order. It never fails; non-positive arguments select the
// configured defaults.
func (s *LeadService) LoadLeads(ctx context.Context, limit, maxPages int) leads.Table {
	return s.Load(ctx, limit, maxPages).Leads
}

// Load is LoadLeads with the outcome details. The returned table is owned by the caller.
func (s *LeadService) Load(ctx context.Context, limit, maxPages int) LoadResult {
	ctx = ensureContext(ctx)
	start := time.Now()
	if limit <= 0 {
		limit = s.cfg.Limit
	}
	if maxPages <= 0 {
		maxPages = s.cfg.MaxPages
	}

	// the slot is read detached so a gone client never hides a stored entry
	entry := s.readCache(context.WithoutCancel(ctx))
	if entry != nil && cache.IsFresh(entry, s.cfg.TTL, s.timeNow()) {
		result := LoadResult{Leads: entry.Leads, Outcome: OutcomeFresh, CachedAt: entry.Timestamp}
		s.finish(result, start)
		return result
	}

	key := strconv.Itoa(limit) + "/" + strconv.Itoa(maxPages)
	value, _, shared := s.group.Do(key, func() (interface{}, error) {
		// shared by every waiter; detached from the first caller's cancellation
		return s.refresh(context.WithoutCancel(ctx), limit, maxPages, entry), nil
	})

	result := value.(LoadResult)
	if shared {
		result.Leads = result.Leads.Clone()
	}
	s.finish(result, start)
	return result
}

// Status reports on the stored entry without contacting the CRM.
func (s *LeadService) Status(ctx context.Context) CacheStatus {
	ctx = ensureContext(ctx)
	status := CacheStatus{TTL: s.cfg.TTL}

	entry, err := s.safeRead(ctx)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			status.Err = err
		}
		return status
	}

	now := s.timeNow()
	status.Present = true
	status.Fresh = cache.IsFresh(entry, s.cfg.TTL, now)
	status.CachedAt = entry.Timestamp
	status.Age = entry.Age(now)
	status.Leads = len(entry.Leads)
	return status
}

func (s *LeadService) refresh(ctx context.Context, limit, maxPages int, stale *cache.Entry) LoadResult {
	var (
		pages    []leads.Table
		total    int
		fetched  int
		fetchErr error
	)

	for page := 1; page <= maxPages; page++ {
		table, err := s.fetchPage(ctx, page)
		fetched++
		if err != nil {
			fetchErr = err
			s.log.Warn("crm page failed; stopping pagination",
				zap.Int("page", page),
				zap.String("kind", string(crm.KindOf(err))),
				zap.Error(err),
			)
			break
		}
		if len(table) == 0 {
			break
		}
		pages = append(pages, table)
		total += len(table)
		if total >= limit {
			break
		}
	}

	if len(pages) == 0 {
		return s.fallback(stale, fetched, fetchErr)
	}

	merged := leads.Concat(pages...).
		Dedup().
		Truncate(limit).
		ParseCaptureTimes(s.cfg.Location)

	result := LoadResult{
		Leads:        merged,
		Outcome:      OutcomeRefreshed,
		CachedAt:     s.timeNow(),
		PagesFetched: fetched,
		FetchErr:     fetchErr,
	}
	if len(merged) == 0 {
		return result
	}

	if err := s.writeCache(ctx, cache.Entry{Timestamp: result.CachedAt, Leads: merged}); err != nil {
		result.WriteErr = err
	}
	return result
}

func (s *LeadService) fallback(stale *cache.Entry, fetched int, fetchErr error) LoadResult {
	if stale == nil {
		s.log.Warn("crm returned no leads and no cache exists", zap.Int("pages", fetched))
		return LoadResult{
			Leads:        leads.Table{},
			Outcome:      OutcomeEmpty,
			PagesFetched: fetched,
			FetchErr:     fetchErr,
		}
	}

	s.log.Warn("crm returned no leads; serving stale cache",
		zap.Time("cached_at", stale.Timestamp),
		zap.Int("leads", len(stale.Leads)),
	)
	return LoadResult{
		Leads:        stale.Leads,
		Outcome:      OutcomeStaleFallback,
		CachedAt:     stale.Timestamp,
		PagesFetched: fetched,
		FetchErr:     fetchErr,
	}
}

func (s *LeadService) readCache(ctx context.Context) *cache.Entry {
	entry, err := s.safeRead(ctx)
	switch {
	case err == nil:
		if cache.IsFresh(entry, s.cfg.TTL, s.timeNow()) {
			monitoring.RecordCacheRead("fresh")
		} else {
			monitoring.RecordCacheRead("stale")
		}
		return entry
	case errors.Is(err, cache.ErrCacheMiss):
		monitoring.RecordCacheRead("miss")
	case errors.Is(err, cache.ErrCorrupt):
		monitoring.RecordCacheRead("corrupt")
		s.log.Warn("cache entry is corrupt; treating as absent", zap.Error(err))
	default:
		monitoring.RecordCacheRead("error")
		s.log.Warn("cache read failed; treating as absent", zap.Error(err))
	}
	return nil
}

func (s *LeadService) writeCache(ctx context.Context, entry cache.Entry) error {
	err := s.safeWrite(ctx, entry)
	if err != nil {
		monitoring.RecordCacheWrite("failure", err.Error())
		s.log.Error("cache write failed; previous entry kept", zap.Int("leads", len(entry.Leads)), zap.Error(err))
		return err
	}
	monitoring.RecordCacheWrite("success", "")
	monitoring.SetCacheEntry(len(entry.Leads), entry.Timestamp)
	return nil
}

func (s *LeadService) fetchPage(ctx context.Context, page int) (table leads.Table, err error) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			table, err = nil, fmt.Errorf("crm: page %d: panic: %v", page, rec)
		}
		monitoring.RecordCRMPageFetch(pageResult(table, err), time.Since(start))
	}()
	return s.fetcher.FetchPage(ctx, page)
}

func (s *LeadService) safeRead(ctx context.Context) (entry *cache.Entry, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			entry, err = nil, fmt.Errorf("cache: read panic: %v", rec)
		}
	}()
	entry, err = s.store.Read(ctx)
	if err == nil && entry == nil {
		err = cache.ErrCacheMiss
	}
	return entry, err
}

func (s *LeadService) safeWrite(ctx context.Context, entry cache.Entry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cache: write panic: %v", rec)
		}
	}()
	return s.store.Write(ctx, entry)
}

func (s *LeadService) finish(result LoadResult, start time.Time) {
	duration := time.Since(start)
	monitoring.RecordLeadsLoad(string(result.Outcome), len(result.Leads), duration)
	s.log.Info("leads loaded",
		zap.String("outcome", string(result.Outcome)),
		zap.Int("leads", len(result.Leads)),
		zap.Int("pages", result.PagesFetched),
		zap.Duration("duration", duration),
	)
}

func pageResult(table leads.Table, err error) string {
	switch {
	case err != nil:
		if kind := crm.KindOf(err); kind != "" {
			return string(kind)
		}
		return "error"
	case len(table) == 0:
		return "empty"
	default:
		return "ok"
	}
}
