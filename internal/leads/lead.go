// Package leads holds the CRM lead records served to the dashboards and the table
// operations applied to them before they are cached.
package leads

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	// FieldID is the CRM field used as the lead identity.
	FieldID = "id"
	// FieldCapturedAt is the CRM field holding when the lead was captured.
	FieldCapturedAt = "data_captura"
)

// Record is one lead exactly as the CRM returned it. Only FieldID and FieldCapturedAt
// are interpreted; everything else is passed through untouched.
type Record map[string]any

// Lead is a record plus the capture time derived from it. A nil CapturedAt means the
// value was absent or could not be parsed.
type Lead struct {
	Fields     Record     `json:"fields"`
	CapturedAt *time.Time `json:"captured_at,omitempty"`
}

// Key returns the identity used for deduplication and whether the lead has one.
// Numbers and strings never collide: 7 and "7" are different leads.
func (l Lead) Key() (string, bool) {
	raw, ok := l.Fields[FieldID]
	if !ok || raw == nil {
		return "", false
	}

	switch v := raw.(type) {
	case string:
		return "s:" + v, true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return "n:" + strconv.FormatInt(n, 10), true
		}
		if f, err := v.Float64(); err == nil {
			return "n:" + strconv.FormatFloat(f, 'g', -1, 64), true
		}
		return "n:" + v.String(), true
	case float64:
		return "n:" + strconv.FormatFloat(v, 'g', -1, 64), true
	case int:
		return "n:" + strconv.Itoa(v), true
	case int64:
		return "n:" + strconv.FormatInt(v, 10), true
	case bool:
		return "b:" + strconv.FormatBool(v), true
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		return "j:" + string(encoded), true
	}
}

// Clone returns a deep copy of the lead.
func (l Lead) Clone() Lead {
	out := Lead{Fields: cloneRecord(l.Fields)}
	if l.CapturedAt != nil {
		ts := *l.CapturedAt
		out.CapturedAt = &ts
	}
	return out
}

// Table is an ordered sequence of leads.
type Table []Lead

// FromRecords wraps raw records into a table without interpreting them.
func FromRecords(records []Record) Table {
	table := make(Table, 0, len(records))
	for _, record := range records {
		if record == nil {
			record = Record{}
		}
		table = append(table, Lead{Fields: record})
	}
	return table
}

// Concat joins tables preserving order.
func Concat(tables ...Table) Table {
	total := 0
	for _, t := range tables {
		total += len(t)
	}
	out := make(Table, 0, total)
	for _, t := range tables {
		out = append(out, t...)
	}
	return out
}

// Clone returns a deep copy of the table. A nil table clones to an empty one.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for i, lead := range t {
		out[i] = lead.Clone()
	}
	return out
}

// Dedup drops leads whose id was already seen, keeping the first occurrence.
// Leads without an id are always kept.
func (t Table) Dedup() Table {
	seen := make(map[string]struct{}, len(t))
	out := make(Table, 0, len(t))
	for _, lead := range t {
		key, ok := lead.Key()
		if ok {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, lead)
	}
	return out
}

// Truncate keeps at most limit leads. A non-positive limit keeps nothing.
func (t Table) Truncate(limit int) Table {
	if limit <= 0 {
		return Table{}
	}
	if len(t) <= limit {
		return t
	}
	return t[:limit]
}

// HasField reports whether any lead carries the field.
func (t Table) HasField(name string) bool {
	for _, lead := range t {
		if _, ok := lead.Fields[name]; ok {
			return true
		}
	}
	return false
}

// ParseCaptureTimes returns a copy of the table with FieldCapturedAt coerced into a
// time for every lead. When any lead has the field, every lead ends up with it: parsed
// values are rewritten as RFC 3339 and missing or unparseable ones become null.
func (t Table) ParseCaptureTimes(loc *time.Location) Table {
	out := t.Clone()
	if !out.HasField(FieldCapturedAt) {
		return out
	}

	for i := range out {
		lead := &out[i]
		ts, ok := ParseCaptureTime(lead.Fields[FieldCapturedAt], loc)
		if !ok {
			lead.CapturedAt = nil
			lead.Fields[FieldCapturedAt] = nil
			continue
		}
		lead.CapturedAt = &ts
		lead.Fields[FieldCapturedAt] = ts.Format(time.RFC3339)
	}
	return out
}

// Records renders the table back into plain records for API consumers.
func (t Table) Records() []Record {
	out := make([]Record, len(t))
	for i, lead := range t {
		out[i] = cloneRecord(lead.Fields)
	}
	return out
}

// IDs lists the raw id values in table order, skipping leads without one.
func (t Table) IDs() []string {
	ids := make([]string, 0, len(t))
	for _, lead := range t {
		if key, ok := lead.Key(); ok {
			ids = append(ids, key[strings.IndexByte(key, ':')+1:])
		}
	}
	return ids
}

func cloneRecord(r Record) Record {
	if r == nil {
		return Record{}
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, inner := range value {
			out[k] = cloneValue(inner)
		}
		return out
	case Record:
		return cloneRecord(value)
	case []any:
		out := make([]any, len(value))
		for i, inner := range value {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return value
	}
}
