package maintenance

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mrimoveis/leadcache/internal/cache"
	"github.com/mrimoveis/leadcache/internal/models"
	"github.com/mrimoveis/leadcache/internal/monitoring"
	"github.com/mrimoveis/leadcache/internal/services"
	"github.com/mrimoveis/leadcache/pkg/logger"
)

const (
	defaultTempMaxAge    = time.Hour
	defaultSweepSpec     = "@hourly"
	defaultProbeSpec     = "@every 5m"
	defaultPruneSpec     = "@daily"
	jobTempSweep         = "temp_sweep"
	jobCacheProbe        = "cache_probe"
	jobSlotPrune         = "slot_prune"
	maintenanceResultOK  = "success"
	maintenanceResultErr = "failure"
)

// StatusReporter reports on the cache entry without fetching.
type StatusReporter interface {
	Status(ctx context.Context) services.CacheStatus
}

// Cleaner coordinates background maintenance for the leads cache: sweeping temp files
// left by interrupted file-store writes, refreshing the cache gauges, and pruning
// database slots no longer in use.
type Cleaner struct {
	cacheFile  string
	tempMaxAge time.Duration
	status     StatusReporter
	db         *gorm.DB
	slot       string
	cron       *cron.Cron
	now        func() time.Time
	log        *zap.Logger
	enabled    bool

	sweepSchedule string
	probeSchedule string
	pruneSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for age comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithTempSweep enables the temp-file sweep for the directory holding cacheFile.
func WithTempSweep(cacheFile string, maxAge time.Duration) Option {
	return func(cleaner *Cleaner) {
		cleaner.cacheFile = strings.TrimSpace(cacheFile)
		if maxAge > 0 {
			cleaner.tempMaxAge = maxAge
		}
	}
}

// WithStatusProbe enables the periodic cache probe.
func WithStatusProbe(status StatusReporter) Option {
	return func(cleaner *Cleaner) {
		cleaner.status = status
	}
}

// WithSlotPrune enables removal of database cache rows other than slot.
func WithSlotPrune(db *gorm.DB, slot string) Option {
	return func(cleaner *Cleaner) {
		cleaner.db = db
		cleaner.slot = strings.TrimSpace(slot)
	}
}

// WithSweepSchedule overrides the cron specification for the temp-file sweep.
func WithSweepSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sweepSchedule = spec
		}
	}
}

// WithProbeSchedule overrides the cron specification for the cache probe.
func WithProbeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.probeSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. Jobs without their dependency are skipped.
func NewCleaner(opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		now:           time.Now,
		tempMaxAge:    defaultTempMaxAge,
		sweepSchedule: defaultSweepSpec,
		probeSchedule: defaultProbeSpec,
		pruneSchedule: defaultPruneSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	if cleaner.slot == "" {
		cleaner.slot = cache.DefaultKey
	}

	cleaner.enabled = cleaner.cacheFile != "" || cleaner.status != nil || cleaner.db != nil

	return cleaner
}

// Start registers jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.cacheFile != "" {
		if _, err := c.cron.AddFunc(c.sweepSchedule, func() {
			_ = c.run(context.Background(), jobTempSweep, c.sweep)
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", jobTempSweep, err)
		}
	}

	if c.status != nil {
		if _, err := c.cron.AddFunc(c.probeSchedule, func() {
			_ = c.run(context.Background(), jobCacheProbe, c.probe)
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", jobCacheProbe, err)
		}
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.pruneSchedule, func() {
			_ = c.run(context.Background(), jobSlotPrune, c.prune)
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", jobSlotPrune, err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.cacheFile != "" {
		errs = multierr.Append(errs, c.run(ctx, jobTempSweep, c.sweep))
	}
	if c.status != nil {
		errs = multierr.Append(errs, c.run(ctx, jobCacheProbe, c.probe))
	}
	if c.db != nil {
		errs = multierr.Append(errs, c.run(ctx, jobSlotPrune, c.prune))
	}

	return errs
}

func (c *Cleaner) run(ctx context.Context, job string, fn func(context.Context) (string, error)) error {
	start := time.Now()
	message, err := fn(ctx)
	duration := time.Since(start)

	if err != nil {
		c.log.Warn("maintenance job failed", zap.String("job", job), zap.Error(err))
		monitoring.RecordMaintenanceRun(job, maintenanceResultErr, err.Error(), duration)
		return fmt.Errorf("%s: %w", job, err)
	}

	c.log.Debug("maintenance job completed", zap.String("job", job), zap.String("result", message))
	monitoring.RecordMaintenanceRun(job, maintenanceResultOK, message, duration)
	return nil
}

func (c *Cleaner) sweep(ctx context.Context) (string, error) {
	removed, err := SweepTempFiles(ctx, c.cacheFile, c.tempMaxAge, c.now())
	if removed > 0 {
		c.log.Info("removed orphaned cache temp files", zap.Int("count", removed))
	}
	return fmt.Sprintf("%d temp files removed", removed), err
}

func (c *Cleaner) probe(ctx context.Context) (string, error) {
	status := c.status.Status(ctx)
	if status.Err != nil {
		return "", status.Err
	}
	if !status.Present {
		monitoring.SetCacheEntry(0, time.Time{})
		return "cache empty", nil
	}
	monitoring.SetCacheEntry(status.Leads, status.CachedAt)
	return fmt.Sprintf("%d leads, age %s", status.Leads, status.Age.Truncate(time.Second)), nil
}

func (c *Cleaner) prune(ctx context.Context) (string, error) {
	removed, err := PruneSlots(ctx, c.db, c.slot)
	return fmt.Sprintf("%d slots removed", removed), err
}

// SweepTempFiles removes temp files written next to cacheFile that are older than
// maxAge. Files still being written are younger than maxAge and are left alone.
func SweepTempFiles(ctx context.Context, cacheFile string, maxAge time.Duration, now time.Time) (int, error) {
	if strings.TrimSpace(cacheFile) == "" {
		return 0, errors.New("sweep temp files: cache file is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if maxAge <= 0 {
		maxAge = defaultTempMaxAge
	}

	dir := filepath.Dir(cacheFile)
	prefix := filepath.Base(cacheFile) + "."

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sweep temp files: read %s: %w", dir, err)
	}

	var (
		removed int
		errs    error
	)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, multierr.Append(errs, err)
		}

		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, cache.TempSuffix) {
			continue
		}

		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}

		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, fmt.Errorf("sweep temp files: remove %s: %w", name, err))
			continue
		}
		removed++
	}

	return removed, errs
}

// PruneSlots deletes database cache rows for every slot except keep.
func PruneSlots(ctx context.Context, db *gorm.DB, keep string) (int64, error) {
	if db == nil {
		return 0, errors.New("prune slots: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Where("slot <> ?", keep).
		Delete(&models.LeadCacheEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune slots: %w", result.Error)
	}
	return result.RowsAffected, nil
}
