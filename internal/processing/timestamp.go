package processing

import "time"

// Timestamp layouts accepted on input. Records are stored and emitted in
// millisecond precision; the second layout tolerates sources that drop
// the fractional part.
const (
	layoutMillis  = "2006-01-02T15:04:05.000"
	layoutSeconds = "2006-01-02T15:04:05"
)

// parseTimestampMs parses an ISO-8601 timestamp into epoch milliseconds.
// Timestamps carry no zone and are interpreted as UTC.
func parseTimestampMs(s string) (int64, bool) {
	if t, err := time.Parse(layoutMillis, s); err == nil {
		return t.UnixMilli(), true
	}
	if t, err := time.Parse(layoutSeconds, s); err == nil {
		return t.UnixMilli(), true
	}
	return 0, false
}

// formatTimestampMs renders epoch milliseconds back into the canonical
// millisecond-precision layout.
func formatTimestampMs(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(layoutMillis)
}
