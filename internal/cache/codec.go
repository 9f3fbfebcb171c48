package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mrimoveis/leadcache/internal/leads"
)

const envelopeVersion = 1

type envelope struct {
	Version   int         `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Leads     leads.Table `json:"leads"`
}

// Encode serialises an entry into the payload shared by every backend.
func Encode(entry Entry) ([]byte, error) {
	if entry.Timestamp.IsZero() {
		return nil, errors.New("cache: entry timestamp is required")
	}
	table := entry.Leads
	if table == nil {
		table = leads.Table{}
	}
	payload, err := json.Marshal(envelope{
		Version:   envelopeVersion,
		Timestamp: entry.Timestamp,
		Leads:     table,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: encode: %w", err)
	}
	return payload, nil
}

// Decode parses a payload produced by Encode. Any failure wraps ErrCorrupt.
func Decode(payload []byte) (*Entry, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrCorrupt)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, env.Version)
	}
	if env.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: missing timestamp", ErrCorrupt)
	}

	table := env.Leads
	if table == nil {
		table = leads.Table{}
	}
	for i := range table {
		if table[i].Fields == nil {
			table[i].Fields = leads.Record{}
		}
	}
	return &Entry{Timestamp: env.Timestamp, Leads: table}, nil
}
