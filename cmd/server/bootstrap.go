package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mrimoveis/leadcache/internal/api"
	"github.com/mrimoveis/leadcache/internal/app"
	"github.com/mrimoveis/leadcache/internal/app/maintenance"
	"github.com/mrimoveis/leadcache/internal/cache"
	"github.com/mrimoveis/leadcache/internal/crm"
	"github.com/mrimoveis/leadcache/internal/database"
	"github.com/mrimoveis/leadcache/internal/monitoring"
	"github.com/mrimoveis/leadcache/internal/monitoring/checks"
	"github.com/mrimoveis/leadcache/internal/services"
	"github.com/mrimoveis/leadcache/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Store      cache.Store
	Monitoring *monitoring.Module
	LeadSvc    *services.LeadService
	Cleaner    *maintenance.Cleaner
	Router     *gin.Engine
}

// bootstrapRuntime initialises the cache backend, CRM client, lead service, background
// jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitoring)

	stack.Store, stack.DB, err = openCacheStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	client, err := crm.NewClient(cfg.CRM.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise crm client: %w", err)
	}

	svcCfg, err := cfg.Leads.ServiceConfig()
	if err != nil {
		return nil, err
	}

	stack.LeadSvc, err = services.NewLeadService(stack.Store, client, svcCfg)
	if err != nil {
		return nil, fmt.Errorf("initialise lead service: %w", err)
	}

	registerHealthChecks(stack, cfg)

	stack.Cleaner = maintenance.NewCleaner(cleanerOptions(stack, cfg)...)
	if cfg.Maintenance.Enabled {
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(cfg, stack.LeadSvc, stack.Monitoring)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	effective := stack.LeadSvc.Config()
	log.Info("lead service ready",
		zap.String("cache_driver", cfg.Cache.NormalizedDriver()),
		zap.Duration("ttl", effective.TTL),
		zap.Int("limit", effective.Limit),
		zap.Int("max_pages", effective.MaxPages),
		zap.String("timezone", effective.Location.String()))

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			<-stopCtx.Done()
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown run failed", zap.Error(err))
		}
	}

	if closer, ok := s.Store.(io.Closer); ok && closer != nil {
		if err := closer.Close(); err != nil {
			log.Warn("cache backend shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
}

// openCacheStore builds the store selected by cache.driver. The database handle is
// returned only for the database driver.
func openCacheStore(ctx context.Context, cfg *app.Config, log *zap.Logger) (cache.Store, *gorm.DB, error) {
	driver := cfg.Cache.NormalizedDriver()

	switch driver {
	case app.CacheDriverFile:
		store, err := cache.NewFileStore(cfg.Cache.FilePath())
		if err != nil {
			return nil, nil, fmt.Errorf("initialise file cache: %w", err)
		}
		log.Info("file cache ready", zap.String("path", store.Path()))
		return store, nil, nil

	case app.CacheDriverDatabase:
		db, err := initialiseDatabase(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Ping(ctx, db, cfg.Monitoring.Health.Timeout); err != nil {
			_ = database.Close(db)
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		return cache.NewDatabaseStore(db, cfg.Cache.SlotKey()), db, nil

	case app.CacheDriverRedis:
		client, err := cache.NewRedisClient(cfg.Cache.RedisClientConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		return cache.NewRedisStore(client, cfg.Cache.SlotKey()), nil, nil

	case app.CacheDriverMemcache:
		memCfg := cfg.Cache.MemcacheClientConfig()
		store, err := cache.NewMemcacheStore(memCfg, cfg.Cache.SlotKey())
		if err != nil {
			return nil, nil, fmt.Errorf("initialise memcache: %w", err)
		}
		log.Info("memcache configured", zap.Strings("servers", memCfg.Servers))
		return store, nil, nil

	case app.CacheDriverMemory:
		log.Warn("memory cache selected; entries are lost on restart")
		return cache.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported cache driver %q", cfg.Cache.Driver)
	}
}

func registerHealthChecks(stack *runtimeStack, cfg *app.Config) {
	health := stack.Monitoring.Health()
	timeout := cfg.Monitoring.Health.Timeout

	health.RegisterLiveness(checks.Maintenance(0))
	health.RegisterReadiness(checks.CacheStore(stack.Store, stack.LeadSvc.Config().TTL, timeout))

	if stack.DB != nil {
		health.RegisterReadiness(checks.Database(stack.DB, timeout))
		return
	}
	if pinger, ok := stack.Store.(cache.Pinger); ok {
		health.RegisterReadiness(checks.Backend(cfg.Cache.NormalizedDriver(), pinger, timeout))
	}
}

func cleanerOptions(stack *runtimeStack, cfg *app.Config) []maintenance.Option {
	opts := []maintenance.Option{
		maintenance.WithStatusProbe(stack.LeadSvc),
		maintenance.WithProbeSchedule(cfg.Maintenance.ProbeSchedule),
		maintenance.WithSweepSchedule(cfg.Maintenance.SweepSchedule),
	}
	if fileStore, ok := stack.Store.(*cache.FileStore); ok {
		opts = append(opts, maintenance.WithTempSweep(fileStore.Path(), cfg.Maintenance.TempMaxAge))
	}
	if stack.DB != nil {
		opts = append(opts, maintenance.WithSlotPrune(stack.DB, cfg.Cache.SlotKey()))
	}
	return opts
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnConfig()
	db, err := database.OpenAndMigrate(dbCfg)
	if err != nil {
		return nil, err
	}

	driver := dbCfg.Driver
	if strings.TrimSpace(driver) == "" {
		driver = "sqlite"
	}
	logger.WithModule("database").Info("database connected", zap.String("driver", driver))

	return db, nil
}
