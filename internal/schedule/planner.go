// internal/schedule/planner.go
package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/user/concierge/internal/calendar"
	"github.com/user/concierge/internal/interval"
	"github.com/user/concierge/internal/types"
)

const (
	defaultDaysAhead = 7
	maxSuggestions   = 5
	optimalSlotStep  = 30 * time.Minute
	defaultSlotHours = 1
)

// alternativeHours are the candidate start hours scanned when looking
// for alternatives to a conflicted slot.
var alternativeHours = []int{9, 10, 11, 14, 15, 16}

// ConflictError reports that a requested slot overlaps existing events.
type ConflictError struct {
	Conflicts []*calendar.Event
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflicts with %d existing event(s)", len(e.Conflicts))
}

// Slot is a candidate time produced by the suggestion searches. Score
// and Reasoning are only set for optimal-time suggestions.
type Slot struct {
	Range     interval.TimeRange
	Score     int
	Reasoning string
}

// Availability splits a window into its busy and free parts. Busy is
// the merged event coverage clipped to the window; Free is everything
// else. Together they partition the window.
type Availability struct {
	Busy []interval.TimeRange
	Free []interval.TimeRange
}

// Planner runs conflict detection and slot search over a calendar
// store. The clock is injected so searches are testable.
type Planner struct {
	store calendar.Store
	loc   *time.Location
	now   func() time.Time
}

func NewPlanner(store calendar.Store, loc *time.Location) *Planner {
	if loc == nil {
		loc = time.Local
	}
	return &Planner{store: store, loc: loc, now: time.Now}
}

// SetClock overrides the planner's notion of now.
func (p *Planner) SetClock(now func() time.Time) {
	p.now = now
}

// Location returns the planner's reference timezone.
func (p *Planner) Location() *time.Location {
	return p.loc
}

// CheckConflicts returns all events overlapping r, ordered by start.
// An empty result means the slot is free.
func (p *Planner) CheckConflicts(ctx context.Context, r interval.TimeRange) ([]*calendar.Event, error) {
	return p.store.ListEvents(ctx, r)
}

// CheckAvailability computes busy and free intervals within bounds.
func (p *Planner) CheckAvailability(ctx context.Context, bounds interval.TimeRange) (*Availability, error) {
	events, err := p.store.ListEvents(ctx, bounds)
	if err != nil {
		return nil, err
	}

	ranges := make([]interval.TimeRange, 0, len(events))
	for _, ev := range events {
		r := ev.Range()
		// Clip to the window so busy and free partition it.
		if r.Start.Before(bounds.Start) {
			r.Start = bounds.Start
		}
		if r.End.After(bounds.End) {
			r.End = bounds.End
		}
		ranges = append(ranges, r)
	}

	busy := interval.MergeSorted(ranges)
	return &Availability{
		Busy: busy,
		Free: interval.Gaps(bounds, busy),
	}, nil
}

// CreateWithConflictCheck creates the event unless it overlaps existing
// events. With force set the event is created regardless and the
// returned bool reports whether conflicts were overridden. Without
// force a conflicting request fails with *ConflictError.
func (p *Planner) CreateWithConflictCheck(ctx context.Context, ev *calendar.Event, force bool) (*calendar.Event, bool, error) {
	r, err := interval.New(ev.Start, ev.End)
	if err != nil {
		return nil, false, err
	}
	conflicts, err := p.CheckConflicts(ctx, r)
	if err != nil {
		return nil, false, err
	}
	if len(conflicts) > 0 && !force {
		return nil, false, &ConflictError{Conflicts: conflicts}
	}

	created, err := p.store.CreateEvent(ctx, ev)
	if err != nil {
		return nil, false, err
	}
	return created, len(conflicts) > 0, nil
}

// MoveEvent reschedules an event to a new time range.
func (p *Planner) MoveEvent(ctx context.Context, id types.EventID, r interval.TimeRange) (*calendar.Event, error) {
	return p.store.UpdateEvent(ctx, id, calendar.Patch{Start: &r.Start, End: &r.End})
}

// UpdateEvent applies a field patch to an event.
func (p *Planner) UpdateEvent(ctx context.Context, id types.EventID, patch calendar.Patch) (*calendar.Event, error) {
	return p.store.UpdateEvent(ctx, id, patch)
}

// GetEvent fetches a single event.
func (p *Planner) GetEvent(ctx context.Context, id types.EventID) (*calendar.Event, error) {
	return p.store.GetEvent(ctx, id)
}

// ListUpcoming returns the next events starting at or after from.
func (p *Planner) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*calendar.Event, error) {
	return p.store.ListUpcoming(ctx, from, limit)
}

// SearchEvents finds events at or after from matching query.
func (p *Planner) SearchEvents(ctx context.Context, query string, from time.Time, limit int) ([]*calendar.Event, error) {
	return p.store.Search(ctx, query, from, limit)
}

// RemoveEvent deletes an event, returning it for confirmation.
func (p *Planner) RemoveEvent(ctx context.Context, id types.EventID) (*calendar.Event, error) {
	ev, err := p.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.store.DeleteEvent(ctx, id); err != nil {
		return nil, err
	}
	return ev, nil
}

// SuggestAlternatives searches forward from the original slot's date
// for free slots of the given duration. Candidates are the standard
// business hours on each day; results keep discovery order and are
// capped at maxSuggestions. Slots in the past are never proposed.
func (p *Planner) SuggestAlternatives(ctx context.Context, original interval.TimeRange, duration time.Duration, daysAhead int) ([]Slot, error) {
	if daysAhead <= 0 {
		daysAhead = defaultDaysAhead
	}
	if duration <= 0 {
		duration = original.Duration()
	}
	if duration <= 0 {
		duration = defaultSlotHours * time.Hour
	}

	now := p.now().In(p.loc)
	start := original.Start.In(p.loc)
	year, month, day := start.Date()

	var slots []Slot
	for offset := 0; offset <= daysAhead; offset++ {
		for _, hour := range alternativeHours {
			slotStart := time.Date(year, month, day+offset, hour, 0, 0, 0, p.loc)
			if slotStart.Before(now) {
				continue
			}
			r := interval.TimeRange{Start: slotStart, End: slotStart.Add(duration)}

			free, err := p.isFree(ctx, r)
			if err != nil {
				return nil, err
			}
			if free {
				slots = append(slots, Slot{Range: r})
			}
			if len(slots) >= maxSuggestions {
				return slots, nil
			}
		}
	}
	return slots, nil
}

// SuggestOptimal searches the activity's preferred daily windows for
// free slots and scores each candidate. Results are sorted by score,
// highest first, preserving discovery order between equal scores, and
// capped at maxSuggestions. An empty result is a normal outcome.
func (p *Planner) SuggestOptimal(ctx context.Context, activity string, duration time.Duration, preferredDate time.Time, daysAhead int) ([]Slot, error) {
	if daysAhead <= 0 {
		daysAhead = defaultDaysAhead
	}
	if duration <= 0 {
		duration = defaultSlotHours * time.Hour
	}

	class := ClassifyActivity(activity)
	windows := preferredWindows(class)

	now := p.now().In(p.loc)
	anchor := preferredDate
	if anchor.IsZero() {
		anchor = now
	}
	anchor = anchor.In(p.loc)
	year, month, day := anchor.Date()

	var slots []Slot
	for offset := 0; offset <= daysAhead; offset++ {
		date := time.Date(year, month, day+offset, 0, 0, 0, 0, p.loc)
		if isWeekend(date.Weekday()) && skipsWeekends(class) {
			continue
		}

		for _, w := range windows {
			windowStart := date.Add(time.Duration(w.startHour)*time.Hour + time.Duration(w.startMin)*time.Minute)
			windowEnd := date.Add(time.Duration(w.endHour)*time.Hour + time.Duration(w.endMin)*time.Minute)

			for cursor := windowStart; !cursor.Add(duration).After(windowEnd); cursor = cursor.Add(optimalSlotStep) {
				if cursor.Before(now) {
					continue
				}
				r := interval.TimeRange{Start: cursor, End: cursor.Add(duration)}

				free, err := p.isFree(ctx, r)
				if err != nil {
					return nil, err
				}
				if free {
					slots = append(slots, Slot{
						Range:     r,
						Score:     scoreSlot(cursor, class),
						Reasoning: slotReasoning(cursor, class),
					})
				}
				if len(slots) >= maxSuggestions {
					return sortByScore(slots), nil
				}
			}
		}
	}
	return sortByScore(slots), nil
}

func (p *Planner) isFree(ctx context.Context, r interval.TimeRange) (bool, error) {
	events, err := p.store.ListEvents(ctx, r)
	if err != nil {
		return false, err
	}
	return len(events) == 0, nil
}

func sortByScore(slots []Slot) []Slot {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Score > slots[j].Score
	})
	return slots
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}
