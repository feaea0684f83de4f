// Package elapse renders durations the way the bot speaks about them:
// "1 year, 2 days, 3 hours, 4 minutes, 5 seconds", dropping zero units.
package elapse

import (
	"fmt"
	"strings"
	"time"
)

// Since formats the time elapsed between from and now.
func Since(from, now time.Time) string {
	d := now.Sub(from)
	if d < 0 {
		d = 0
	}

	totalDays := int(d.Hours() / 24)
	years := totalDays / 365
	days := totalDays % 365
	secondsOfDay := int(d.Seconds()) % 86400
	hours := secondsOfDay / 3600
	minutes := (secondsOfDay % 3600) / 60
	seconds := secondsOfDay % 60

	var parts []string
	if years > 0 {
		parts = append(parts, unit(years, "year"))
	}
	if days > 0 {
		parts = append(parts, unit(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, unit(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, unit(minutes, "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, unit(seconds, "second"))
	}
	return strings.Join(parts, ", ")
}

func unit(n int, name string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", name)
	}
	return fmt.Sprintf("%d %ss", n, name)
}
