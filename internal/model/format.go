package model

import "fmt"

// FormatClock renders seconds as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// FormatReadable renders seconds for announcements, e.g. "4m 30s".
func FormatReadable(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes, rest := seconds/60, seconds%60
	switch {
	case minutes == 0:
		return fmt.Sprintf("%d %s", rest, plural(rest, "second", "seconds"))
	case rest == 0:
		return fmt.Sprintf("%d %s", minutes, plural(minutes, "minute", "minutes"))
	default:
		return fmt.Sprintf("%dm %ds", minutes, rest)
	}
}

// Progress returns the elapsed share of total as a rounded percentage.
func Progress(timeLeft, total int) int {
	if total <= 0 {
		return 0
	}
	elapsed := total - timeLeft
	return (elapsed*100 + total/2) / total
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
