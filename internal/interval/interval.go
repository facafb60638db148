// Package interval provides half-open time-range algebra for the
// scheduling engine: overlap tests, busy-list merging, and free-gap
// computation. Ranges are half-open [Start, End); touching endpoints do
// not overlap.
package interval

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimeRange is a half-open interval [Start, End) in the reference timezone.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New builds a TimeRange, enforcing Start < End.
func New(start, end time.Time) (TimeRange, error) {
	if !start.Before(end) {
		return TimeRange{}, fmt.Errorf("invalid range: start %s is not before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeRange{Start: start, End: end}, nil
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// IsZero reports whether the range is the zero value.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Overlaps reports whether a and b share any instant. Half-open
// semantics: a range ending exactly when another begins does not overlap.
func Overlaps(a, b TimeRange) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// MergeSorted sorts ranges by start and coalesces any that touch or
// overlap (next.Start <= current.End). The input slice is not modified.
func MergeSorted(ranges []TimeRange) []TimeRange {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]TimeRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []TimeRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !r.Start.After(last.End) {
			if r.End.After(last.End) {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Gaps returns the free windows inside bounds not covered by busy, in
// chronological order. busy must be sorted and merged (see MergeSorted).
// With no busy ranges the whole bounds is free.
func Gaps(bounds TimeRange, busy []TimeRange) []TimeRange {
	var free []TimeRange
	cursor := bounds.Start

	for _, b := range busy {
		if !b.End.After(bounds.Start) || !b.Start.Before(bounds.End) {
			continue
		}
		if cursor.Before(b.Start) {
			free = append(free, TimeRange{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}

	if cursor.Before(bounds.End) {
		free = append(free, TimeRange{Start: cursor, End: bounds.End})
	}
	return free
}

// Boundary formats. All natural-time math happens in a single reference
// timezone; datetimes cross the API boundary as ISO-8601 local strings,
// dates as YYYY-MM-DD, and ranges as "start..end".
const (
	DateTimeLayout = "2006-01-02T15:04:05"
	DateLayout     = "2006-01-02"
	RangeSep       = ".."
)

// ParseDateTime parses an ISO-8601 local datetime in loc. A trailing
// offset or "Z" is honored if present.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	t, err := time.ParseInLocation(DateTimeLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse datetime %q: %w", s, err)
	}
	return t, nil
}

// ParseDate parses a YYYY-MM-DD date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ParseRange parses "start..end" where both halves are ISO-8601 local
// datetimes in loc.
func ParseRange(s string, loc *time.Location) (TimeRange, error) {
	i := strings.Index(s, RangeSep)
	if i < 0 {
		return TimeRange{}, fmt.Errorf("parse range %q: missing %q separator", s, RangeSep)
	}
	start, err := ParseDateTime(s[:i], loc)
	if err != nil {
		return TimeRange{}, err
	}
	end, err := ParseDateTime(s[i+len(RangeSep):], loc)
	if err != nil {
		return TimeRange{}, err
	}
	return New(start, end)
}

// FormatRange renders a range as "start..end" in loc.
func FormatRange(r TimeRange, loc *time.Location) string {
	return r.Start.In(loc).Format(DateTimeLayout) + RangeSep + r.End.In(loc).Format(DateTimeLayout)
}
