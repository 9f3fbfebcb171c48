package cache

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mrimoveis/leadcache/internal/leads"
)

func sampleEntry(ts time.Time) Entry {
	captured := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return Entry{
		Timestamp: ts,
		Leads: leads.Table{
			{Fields: leads.Record{"id": json.Number("1"), "nome": "Ana", "data_captura": "2024-03-01T12:00:00Z"}, CapturedAt: &captured},
			{Fields: leads.Record{"id": "abc", "tags": []any{"a", "b"}}},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)
	entry := sampleEntry(ts)

	payload, err := Encode(entry)
	require.NoError(t, err)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	require.True(t, decoded.Timestamp.Equal(ts))
	require.Len(t, decoded.Leads, 2)
	require.Equal(t, json.Number("1"), decoded.Leads[0].Fields["id"])
	require.Equal(t, "Ana", decoded.Leads[0].Fields["nome"])
	require.NotNil(t, decoded.Leads[0].CapturedAt)
	require.True(t, decoded.Leads[0].CapturedAt.Equal(*entry.Leads[0].CapturedAt))
	require.Nil(t, decoded.Leads[1].CapturedAt)
	require.Equal(t, []any{"a", "b"}, decoded.Leads[1].Fields["tags"])
}

func TestEncodeRequiresTimestamp(t *testing.T) {
	_, err := Encode(Entry{})
	require.Error(t, err)
}

func TestEncodeNilTableAsEmpty(t *testing.T) {
	payload, err := Encode(Entry{Timestamp: time.Now()})
	require.NoError(t, err)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	require.NotNil(t, decoded.Leads)
	require.Empty(t, decoded.Leads)
}

func TestDecodeCorruptPayloads(t *testing.T) {
	cases := map[string]string{
		"empty":             "",
		"whitespace":        "  \n",
		"truncated":         `{"version":1,"timestamp":"2024-01-01T00:00:00Z","leads":[`,
		"not json":          "\x80\x04\x95pickle",
		"wrong version":     `{"version":2,"timestamp":"2024-01-01T00:00:00Z","leads":[]}`,
		"missing timestamp": `{"version":1,"leads":[]}`,
		"leads not list":    `{"version":1,"timestamp":"2024-01-01T00:00:00Z","leads":{}}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(payload))
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrCorrupt), "expected ErrCorrupt, got %v", err)
		})
	}
}

func TestDecodeFillsNilFields(t *testing.T) {
	decoded, err := Decode([]byte(`{"version":1,"timestamp":"2024-01-01T00:00:00Z","leads":[{"fields":null}]}`))
	require.NoError(t, err)
	require.Len(t, decoded.Leads, 1)
	require.NotNil(t, decoded.Leads[0].Fields)
}
