package display

import (
	"strconv"
	"time"
)

// FormatCountdown formats a remaining duration as a compact countdown
// string (e.g. "2m 3s", "42s"). Zero or negative durations read "0s".
func FormatCountdown(d time.Duration) string {
	total := int(d.Seconds())
	if total <= 0 {
		return "0s"
	}
	minutes := total / 60
	seconds := total % 60
	if minutes > 0 {
		return formatMS(minutes, seconds)
	}
	return formatS(seconds)
}

func formatMS(m, s int) string { return strconv.Itoa(m) + "m " + strconv.Itoa(s) + "s" }
func formatS(s int) string     { return strconv.Itoa(s) + "s" }
