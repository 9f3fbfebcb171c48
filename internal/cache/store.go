// Package cache persists the single most recent leads table together with the time it
// was captured.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/mrimoveis/leadcache/internal/leads"
)

var (
	// ErrCacheMiss means no entry has been written yet.
	ErrCacheMiss = errors.New("cache: miss")
	// ErrCorrupt means an entry exists but could not be decoded.
	ErrCorrupt = errors.New("cache: corrupt entry")
)

// Entry is the persisted unit. Stores hand out copies; mutating an Entry never changes
// what is stored.
type Entry struct {
	Timestamp time.Time
	Leads     leads.Table
}

// Age reports how old the entry is at now.
func (e *Entry) Age(now time.Time) time.Duration {
	if e == nil {
		return 0
	}
	return now.Sub(e.Timestamp)
}

// IsFresh reports whether entry is strictly younger than ttl at now.
func IsFresh(entry *Entry, ttl time.Duration, now time.Time) bool {
	if entry == nil {
		return false
	}
	return now.Sub(entry.Timestamp) < ttl
}

// Store is a single-slot leads cache. Read returns ErrCacheMiss when nothing is stored
// and an error wrapping ErrCorrupt when the stored payload cannot be decoded. Write
// replaces the slot wholesale; a failed Write leaves the previous entry readable.
type Store interface {
	Read(ctx context.Context) (*Entry, error)
	Write(ctx context.Context, entry Entry) error
}

// Pinger is implemented by stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}
