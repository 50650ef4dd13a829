// Conversion of the timestamp shapes found in Zoom payloads into a single ISO-8601 form
package timestamps

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// ISOFormat matches the millisecond-precision UTC form used for every outgoing date
const ISOFormat = "2006-01-02T15:04:05.000Z07:00"

// 100,000,000 days either side of the epoch, in milliseconds
const maxEpochMillis = 8.64e15

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Parse interprets raw as an instant. Every number is taken as epoch milliseconds, whatever its
// magnitude, so ten-digit second-scale values land in January 1970. Strings are matched against a set
// of calendar layouts, with zone-less forms read as UTC. The second result is false when raw is absent
// or cannot be interpreted.
func Parse(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, !v.IsZero()
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return parseString(string(v))
		}
		return fromEpoch(f)
	case float64:
		return fromEpoch(v)
	case float32:
		return fromEpoch(float64(v))
	case int:
		return fromEpoch(float64(v))
	case int64:
		return fromEpoch(float64(v))
	case int32:
		return fromEpoch(float64(v))
	case uint64:
		return fromEpoch(float64(v))
	case string:
		return parseString(v)
	}
	return time.Time{}, false
}

func fromEpoch(value float64) (time.Time, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return time.Time{}, false
	}

	if math.Abs(value) > maxEpochMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(math.Round(value))).UTC(), true
}

func parseString(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// Format renders t in ISOFormat, always in UTC
func Format(t time.Time) string {
	return t.UTC().Format(ISOFormat)
}

// FormatOrNow renders t when ok, otherwise the current time from now (time.Now when nil)
func FormatOrNow(t time.Time, ok bool, now func() time.Time) string {
	if ok && !t.IsZero() {
		return Format(t)
	}
	if now == nil {
		now = time.Now
	}
	return Format(now())
}
