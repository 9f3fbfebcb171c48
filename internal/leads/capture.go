package leads

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Day-first layouts the CRM uses in exports; tried after the ISO-style formats.
var dayFirstLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006 15:04:05",
	"02-01-2006",
}

// ParseCaptureTime coerces a raw capture value into a time. Strings without a zone are
// read in loc (time.Local when nil). Numbers are Unix seconds. Absent, null, blank and
// unparseable values report false.
func ParseCaptureTime(raw any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}

	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, !v.IsZero()
	case string:
		return parseCaptureString(v, loc)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		ts, err := cast.ToTimeInDefaultLocationE(n, loc)
		return ts, err == nil
	case float64:
		ts, err := cast.ToTimeInDefaultLocationE(int64(v), loc)
		return ts, err == nil
	default:
		return time.Time{}, false
	}
}

func parseCaptureString(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if ts, err := cast.ToTimeInDefaultLocationE(s, loc); err == nil && !ts.IsZero() {
		return ts, true
	}
	for _, layout := range dayFirstLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
