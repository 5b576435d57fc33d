package store

import "time"

// parseTS parses an RFC3339 timestamp, trying the nanosecond-precision
// form first since that is what NowISO (and SQLite's strftime output)
// produce.
func parseTS(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// NowISO returns the current UTC time formatted the way every ts column
// in this store expects it.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
