package crm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mrimoveis/leadcache/internal/leads"
)

// pageShape is the body layout the CRM answered with.
type pageShape int

const (
	shapeUnknown  pageShape = iota
	shapeEnvelope           // {"data": [...]}
	shapeList               // [...]
)

func (s pageShape) String() string {
	switch s {
	case shapeEnvelope:
		return "envelope"
	case shapeList:
		return "list"
	default:
		return "unknown"
	}
}

// page is a decoded response body. Items holds the raw record array for the known
// shapes and is nil for shapeUnknown.
type page struct {
	shape pageShape
	items []json.RawMessage
}

// decodePage classifies body into one of the supported shapes. Only invalid JSON is an
// error; a well-formed body of any other shape is an unknown page.
func decodePage(body []byte) (page, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return page{}, fmt.Errorf("invalid JSON body (%d bytes)", len(body))
	}

	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return page{}, err
		}
		return page{shape: shapeList, items: items}, nil
	case len(trimmed) > 0 && trimmed[0] == '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return page{}, err
		}
		data, ok := envelope["data"]
		if !ok {
			return page{shape: shapeUnknown}, nil
		}
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			// "data" present but not an array
			return page{shape: shapeUnknown}, nil
		}
		return page{shape: shapeEnvelope, items: items}, nil
	default:
		return page{shape: shapeUnknown}, nil
	}
}

// table converts the page items into leads. Items that are not JSON objects are
// skipped and counted.
func (p page) table() (leads.Table, int) {
	if p.shape == shapeUnknown {
		return leads.Table{}, 0
	}

	records := make([]leads.Record, 0, len(p.items))
	skipped := 0
	for _, item := range p.items {
		record, ok := decodeRecord(item)
		if !ok {
			skipped++
			continue
		}
		records = append(records, record)
	}
	return leads.FromRecords(records), skipped
}

func decodeRecord(raw json.RawMessage) (leads.Record, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var record leads.Record
	if err := dec.Decode(&record); err != nil || record == nil {
		return nil, false
	}
	return record, true
}
