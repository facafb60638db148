// Package vndate interprets Vietnamese date phrases relative to an
// anchor date. Used by the vn_parse_date operation so the oracle never
// does its own date arithmetic.
package vndate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/user/concierge/internal/interval"
)

// weekdayOffsets maps Vietnamese weekday names to their offset from
// Monday.
var weekdayOffsets = map[string]int{
	"thứ 2":    0,
	"thứ hai":  0,
	"thứ 3":    1,
	"thứ ba":   1,
	"thứ 4":    2,
	"thứ tư":   2,
	"thứ 5":    3,
	"thứ năm":  3,
	"thứ 6":    4,
	"thứ sáu":  4,
	"thứ 7":    5,
	"thứ bảy":  5,
	"chủ nhật": 6,
}

// timeRangeRe matches overnight ranges like "21h-6h sáng mai".
var timeRangeRe = regexp.MustCompile(`(\d{1,2})h-(\d{1,2})h\s*(sáng\s+)?mai`)

// Parse resolves a Vietnamese date phrase against the anchor.
// A zero anchor means now. Results:
//   - single day: "2006-01-02"
//   - week or weekend span: "2006-01-02..2006-01-02"
//   - in-day or overnight span: "2006-01-02T15:04:05..2006-01-02T15:04:05"
//
// Unknown phrases resolve to the anchor date itself rather than
// guessing.
func Parse(phrase string, anchor time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	if anchor.IsZero() {
		anchor = time.Now()
	}
	anchor = anchor.In(loc)
	anchorDate := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, loc)

	p := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(phrase))), " ")

	if m := timeRangeRe.FindStringSubmatch(p); m != nil {
		startHour, _ := strconv.Atoi(m[1])
		endHour, _ := strconv.Atoi(m[2])

		var startDate, endDate time.Time
		if m[3] != "" {
			// "21h-6h sáng mai": tonight into tomorrow morning.
			startDate = anchorDate
			endDate = anchorDate.AddDate(0, 0, 1)
		} else {
			// "21h-6h mai": tomorrow night into the day after.
			startDate = anchorDate.AddDate(0, 0, 1)
			endDate = anchorDate.AddDate(0, 0, 2)
		}
		start := startDate.Add(time.Duration(startHour) * time.Hour)
		end := endDate.Add(time.Duration(endHour) * time.Hour)
		return fmt.Sprintf("%s%s%s",
			start.Format(interval.DateTimeLayout),
			interval.RangeSep,
			end.Format(interval.DateTimeLayout))
	}

	switch p {
	case "ngày mai":
		return anchorDate.AddDate(0, 0, 1).Format(interval.DateLayout)

	case "ngày này tuần sau":
		return anchorDate.AddDate(0, 0, 7).Format(interval.DateLayout)

	case "tuần này", "trong tuần này":
		start, end := weekBounds(anchorDate)
		return formatSpan(start, end)

	case "tuần sau", "tuần tới":
		start, end := weekBounds(anchorDate.AddDate(0, 0, 7))
		return formatSpan(start, end)

	case "cuối tuần", "weekend":
		start, _ := weekBounds(anchorDate)
		return formatSpan(start.AddDate(0, 0, 5), start.AddDate(0, 0, 6))
	}

	for name, offset := range weekdayOffsets {
		if p == name+" tuần này" {
			start, _ := weekBounds(anchorDate)
			return start.AddDate(0, 0, offset).Format(interval.DateLayout)
		}
		if p == name+" tuần sau" {
			start, _ := weekBounds(anchorDate.AddDate(0, 0, 7))
			return start.AddDate(0, 0, offset).Format(interval.DateLayout)
		}
	}

	return anchorDate.Format(interval.DateLayout)
}

// weekBounds returns the Monday and Sunday of the ISO week containing d.
func weekBounds(d time.Time) (time.Time, time.Time) {
	weekday := int(d.Weekday()+6) % 7 // Monday=0 .. Sunday=6
	start := d.AddDate(0, 0, -weekday)
	return start, start.AddDate(0, 0, 6)
}

func formatSpan(start, end time.Time) string {
	return start.Format(interval.DateLayout) + interval.RangeSep + end.Format(interval.DateLayout)
}
