package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheConfig lists the memcached servers backing the store.
type MemcacheConfig struct {
	Servers []string
	Timeout time.Duration
}

// MemcacheStore keeps the leads entry under one memcached key with no expiration.
// memcached caps item size (1MB by default), so large tables need -I raised on the
// server.
type MemcacheStore struct {
	mc  *memcache.Client
	key string
}

// NewMemcacheStore creates a store for the configured servers.
func NewMemcacheStore(cfg MemcacheConfig, key string) (*MemcacheStore, error) {
	servers := make([]string, 0, len(cfg.Servers))
	for _, server := range cfg.Servers {
		if server = strings.TrimSpace(server); server != "" {
			servers = append(servers, server)
		}
	}
	if len(servers) == 0 {
		return nil, errors.New("memcache: at least one server is required")
	}

	mc := memcache.New(servers...)
	if cfg.Timeout > 0 {
		mc.Timeout = cfg.Timeout
	}

	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	return &MemcacheStore{mc: mc, key: keyPrefix + key}, nil
}

// Read fetches and decodes the entry.
func (s *MemcacheStore) Read(ctx context.Context) (*Entry, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}

	item, err := s.mc.Get(s.key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("memcache: get %s: %w", s.key, err)
	}
	return Decode(item.Value)
}

// Write replaces the entry.
func (s *MemcacheStore) Write(ctx context.Context, entry Entry) error {
	if err := contextErr(ctx); err != nil {
		return err
	}

	payload, err := Encode(entry)
	if err != nil {
		return err
	}

	if err := s.mc.Set(&memcache.Item{Key: s.key, Value: payload}); err != nil {
		return fmt.Errorf("memcache: set %s: %w", s.key, err)
	}
	return nil
}

// Ping checks every configured server.
func (s *MemcacheStore) Ping(ctx context.Context) error {
	if err := contextErr(ctx); err != nil {
		return err
	}
	return s.mc.Ping()
}
