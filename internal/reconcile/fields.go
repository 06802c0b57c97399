package reconcile

import (
	"encoding/json"
	"strings"
	"time"

	"interestsync/internal/store"
)

// firstString returns the first candidate field holding a non-empty string.
func firstString(doc store.Document, candidates []string) (string, bool) {
	for _, name := range candidates {
		value, ok := doc.Field(name)
		if !ok || value == nil {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}

// firstTime returns the first candidate field that parses as a timestamp.
func firstTime(doc store.Document, candidates []string) (time.Time, bool) {
	for _, name := range candidates {
		value, ok := doc.Field(name)
		if !ok || value == nil {
			continue
		}
		if ts, ok := ParseTime(value); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseTime accepts RFC 3339 strings, unix seconds or milliseconds, and the
// {_seconds, _nanoseconds} shape of exported Firestore timestamps.
func ParseTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), !v.IsZero()
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts.UTC(), true
			}
		}
		return time.Time{}, false
	case float64:
		return fromUnix(v), v > 0
	case int64:
		return fromUnix(float64(v)), v > 0
	case int:
		return fromUnix(float64(v)), v > 0
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromUnix(f), f > 0
	case map[string]any:
		for _, keys := range [][2]string{{"_seconds", "_nanoseconds"}, {"seconds", "nanos"}} {
			secs, ok := v[keys[0]].(float64)
			if !ok {
				continue
			}
			nanos, _ := v[keys[1]].(float64)
			return time.Unix(int64(secs), int64(nanos)).UTC(), true
		}
	}
	return time.Time{}, false
}

func fromUnix(v float64) time.Time {
	if v >= 1e12 {
		return time.UnixMilli(int64(v)).UTC()
	}
	return time.Unix(int64(v), 0).UTC()
}
