// Package timestamp converts the timestamp encodings seen on the wire
// (epoch seconds, epoch milliseconds, numeric strings, calendar strings)
// into one canonical millisecond epoch value.
package timestamp

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Millis is a canonical millisecond epoch timestamp.
type Millis int64

// Unknown marks a timestamp that could not be normalized.
const Unknown Millis = math.MinInt64

// secondsThreshold separates epoch seconds from epoch milliseconds. Positive
// values below it are seconds. 1e10 seconds is in the year 2286, so the
// heuristic only breaks for millisecond values before late April 1970.
const secondsThreshold = 1e10

// calendarLayouts are tried in order for non-numeric strings.
var calendarLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
}

// Normalize returns the canonical millisecond value of raw, or Unknown.
func Normalize(raw any) Millis {
	switch v := raw.(type) {
	case nil:
		return Unknown
	case Millis:
		return v
	case time.Time:
		if v.IsZero() {
			return Unknown
		}
		return Millis(v.UnixMilli())
	case *time.Time:
		if v == nil {
			return Unknown
		}
		return Normalize(*v)
	case json.Number:
		return normalizeString(string(v))
	case string:
		return normalizeString(v)
	case *string:
		if v == nil {
			return Unknown
		}
		return normalizeString(*v)
	case int:
		return fromNumber(float64(v))
	case int8:
		return fromNumber(float64(v))
	case int16:
		return fromNumber(float64(v))
	case int32:
		return fromNumber(float64(v))
	case int64:
		return fromInt(v)
	case uint:
		return fromNumber(float64(v))
	case uint8:
		return fromNumber(float64(v))
	case uint16:
		return fromNumber(float64(v))
	case uint32:
		return fromNumber(float64(v))
	case uint64:
		if v > math.MaxInt64 {
			return Unknown
		}
		return fromInt(int64(v))
	case float32:
		return fromNumber(float64(v))
	case float64:
		return fromNumber(v)
	default:
		return Unknown
	}
}

func normalizeString(s string) Millis {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromInt(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromNumber(f)
	}
	for _, layout := range calendarLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Millis(t.UnixMilli())
		}
	}
	return Unknown
}

// fromInt keeps integer inputs exact instead of routing them through float64.
func fromInt(n int64) Millis {
	if n > 0 && n < secondsThreshold {
		return Millis(n * 1000)
	}
	if Millis(n) == Unknown {
		return Unknown
	}
	return Millis(n)
}

func fromNumber(f float64) Millis {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Unknown
	}
	if f > 0 && f < secondsThreshold {
		f *= 1000
	}
	f = math.Round(f)
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return Unknown
	}
	return Millis(f)
}

// FromTime returns the canonical value of t.
func FromTime(t time.Time) Millis {
	return Normalize(t)
}

// Known reports whether m holds a real timestamp.
func (m Millis) Known() bool {
	return m != Unknown
}

// Or returns m, or fallback when m is Unknown.
func (m Millis) Or(fallback Millis) Millis {
	if m == Unknown {
		return fallback
	}
	return m
}

// Time converts m to a time.Time. Unknown yields the zero time.
func (m Millis) Time() time.Time {
	if m == Unknown {
		return time.Time{}
	}
	return time.UnixMilli(int64(m))
}

func (m Millis) String() string {
	if m == Unknown {
		return "unknown"
	}
	return strconv.FormatInt(int64(m), 10)
}
