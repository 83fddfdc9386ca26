package tempo

import (
	"fmt"
	"time"
)

// FormatUTCOffset renders the UTC offset of t as a signed HH:MM string, the
// format the backend expects in the `timezone` field and query parameter
// (for example "+05:30", "-08:00", "+00:00").
func FormatUTCOffset(t time.Time) string {
	_, seconds := t.Zone()
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}
