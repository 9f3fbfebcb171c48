package app

import (
	"strings"

	"github.com/mrimoveis/leadcache/internal/cache"
)

// Supported values of cache.driver.
const (
	CacheDriverFile     = "file"
	CacheDriverDatabase = "database"
	CacheDriverRedis    = "redis"
	CacheDriverMemcache = "memcache"
	CacheDriverMemory   = "memory"
)

// NormalizedDriver returns the cache driver in canonical form, defaulting to file.
func (c CacheConfig) NormalizedDriver() string {
	return normalizeDriver(c.Driver)
}

// FilePath returns the cache file location, defaulting to the standard path.
func (c CacheConfig) FilePath() string {
	if path := strings.TrimSpace(c.Path); path != "" {
		return path
	}
	return cache.DefaultFilePath
}

// SlotKey returns the key used by keyed backends.
func (c CacheConfig) SlotKey() string {
	if key := strings.TrimSpace(c.Key); key != "" {
		return key
	}
	return cache.DefaultKey
}

// RedisClientConfig converts the application cache configuration into the cache package representation.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
	}
}

// MemcacheClientConfig converts the memcached settings, dropping blank servers.
func (c CacheConfig) MemcacheClientConfig() cache.MemcacheConfig {
	servers := make([]string, 0, len(c.Memcache.Servers))
	for _, server := range c.Memcache.Servers {
		if server = strings.TrimSpace(server); server != "" {
			servers = append(servers, server)
		}
	}
	return cache.MemcacheConfig{
		Servers: servers,
		Timeout: c.Memcache.Timeout,
	}
}

func normalizeDriver(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "":
		return CacheDriverFile
	case "db", "sql", "gorm":
		return CacheDriverDatabase
	case "memcached":
		return CacheDriverMemcache
	default:
		return d
	}
}
