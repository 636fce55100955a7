// Package reportfmt formats the exact date strings the supervisor's
// report stream emits. The weekday/month labels and the hour-0-as-12
// convention reproduce the original supervisor's display_date output
// verbatim, including its non-standard month abbreviations.
package reportfmt

import (
	"fmt"
	"time"
)

var weekdayLabels = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

var monthLabels = [...]string{
	"Jan", "Feb", "Mar", "Apr", "May", "June",
	"July", "Aug", "Sept", "Oct", "Nov", "Dec",
}

// Date renders t in the supervisor's report-line format:
// "<Wkday>, <Mon> <D>, <YYYY> <h>:<m>:<s> <AM|PM>". Minutes and seconds
// are not zero-padded, matching the source's plain "%d:%d:%d".
func Date(t time.Time) string {
	wkday := weekdayLabels[int(t.Weekday())]
	month := monthLabels[int(t.Month())-1]

	hour := t.Hour()
	ampm := "AM"
	if hour >= 12 {
		ampm = "PM"
		hour -= 12
	}
	if hour == 0 {
		hour = 12
	}

	return fmt.Sprintf("%s, %s %d, %d %d:%d:%d %s",
		wkday, month, t.Day(), t.Year(), hour, t.Minute(), t.Second(), ampm)
}
