package format

import (
	"fmt"
	"time"
)

const dateLayout = "Jan 2, 2006, 03:04 PM"

// RelativeTime buckets the age of a unix timestamp into s/m/h/d using floor division.
func RelativeTime(unixSeconds int64, now time.Time) string {
	if unixSeconds <= 0 {
		return Placeholder
	}
	seconds := now.Unix() - unixSeconds
	if seconds < 0 {
		seconds = 0
	}
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds ago", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh ago", seconds/3600)
	}
	return fmt.Sprintf("%dd ago", seconds/86400)
}

// TimeAgo is RelativeTime against the wall clock.
func TimeAgo(unixSeconds int64) string {
	return RelativeTime(unixSeconds, time.Now())
}

// Date renders an RFC 3339 timestamp in local time, e.g. "Mar 5, 2024, 02:30 PM".
func Date(value string) string {
	if value == "" {
		return Placeholder
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return Placeholder
	}
	return t.Local().Format(dateLayout)
}
