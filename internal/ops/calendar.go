// internal/ops/calendar.go
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/user/concierge/internal/calendar"
	"github.com/user/concierge/internal/interval"
	"github.com/user/concierge/internal/schedule"
	"github.com/user/concierge/internal/types"
)

// eventView is the JSON shape events take in operation results. Times
// are local datetimes in the reference timezone.
type eventView struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Range       string   `json:"range"`
	Location    string   `json:"location,omitempty"`
	Description string   `json:"description,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
}

type slotView struct {
	Range     string `json:"range"`
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

func viewEvent(ev *calendar.Event, loc *time.Location) eventView {
	return eventView{
		ID:          string(ev.ID),
		Title:       ev.Title,
		Range:       interval.FormatRange(ev.Range(), loc),
		Location:    ev.Location,
		Description: ev.Description,
		Attendees:   ev.Attendees,
	}
}

func viewEvents(events []*calendar.Event, loc *time.Location) []eventView {
	views := make([]eventView, len(events))
	for i, ev := range events {
		views[i] = viewEvent(ev, loc)
	}
	return views
}

func viewSlots(slots []schedule.Slot, loc *time.Location) []slotView {
	views := make([]slotView, len(slots))
	for i, s := range slots {
		views[i] = slotView{
			Range:     interval.FormatRange(s.Range, loc),
			Score:     s.Score,
			Reasoning: s.Reasoning,
		}
	}
	return views
}

func marshalResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

// CheckConflicts reports events overlapping a proposed range.
type CheckConflicts struct{ planner *schedule.Planner }

func NewCheckConflicts(p *schedule.Planner) *CheckConflicts { return &CheckConflicts{planner: p} }

func (o *CheckConflicts) Name() string { return "check_conflicts" }
func (o *CheckConflicts) Description() string {
	return "Check whether a proposed time range overlaps any existing calendar events"
}
func (o *CheckConflicts) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"range": {"type": "string", "description": "Proposed range as start..end, local ISO-8601 datetimes"}
		},
		"required": ["range"]
	}`)
}

func (o *CheckConflicts) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Range string `json:"range"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	r, err := interval.ParseRange(params.Range, o.planner.Location())
	if err != nil {
		return "", err
	}

	conflicts, err := o.planner.CheckConflicts(ctx, r)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{
		"has_conflicts": len(conflicts) > 0,
		"conflicts":     viewEvents(conflicts, o.planner.Location()),
	})
}

// CheckAvailability partitions a window into busy and free sub-ranges.
type CheckAvailability struct{ planner *schedule.Planner }

func NewCheckAvailability(p *schedule.Planner) *CheckAvailability {
	return &CheckAvailability{planner: p}
}

func (o *CheckAvailability) Name() string { return "check_availability" }
func (o *CheckAvailability) Description() string {
	return "List busy and free sub-ranges inside a time window"
}
func (o *CheckAvailability) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"range": {"type": "string", "description": "Window as start..end, local ISO-8601 datetimes"}
		},
		"required": ["range"]
	}`)
}

func (o *CheckAvailability) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Range string `json:"range"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	bounds, err := interval.ParseRange(params.Range, o.planner.Location())
	if err != nil {
		return "", err
	}

	avail, err := o.planner.CheckAvailability(ctx, bounds)
	if err != nil {
		return "", err
	}

	loc := o.planner.Location()
	return marshalResult(map[string]any{
		"busy": formatRanges(avail.Busy, loc),
		"free": formatRanges(avail.Free, loc),
	})
}

func formatRanges(ranges []interval.TimeRange, loc *time.Location) []string {
	out := make([]string, len(ranges))
	for i, r := range ranges {
		out[i] = interval.FormatRange(r, loc)
	}
	return out
}

// CreateEvent creates an event after checking for conflicts. A conflict
// is reported back as data so the caller can suggest alternatives or
// retry with force.
type CreateEvent struct{ planner *schedule.Planner }

func NewCreateEvent(p *schedule.Planner) *CreateEvent { return &CreateEvent{planner: p} }

func (o *CreateEvent) Name() string { return "create_event_with_conflict_check" }
func (o *CreateEvent) Description() string {
	return "Create a calendar event unless it conflicts with an existing one; set force to true to create anyway"
}
func (o *CreateEvent) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"title": {"type": "string", "description": "Event title"},
			"range": {"type": "string", "description": "Event time as start..end, local ISO-8601 datetimes"},
			"location": {"type": "string", "description": "Optional location"},
			"description": {"type": "string", "description": "Optional description"},
			"attendees": {"type": "array", "items": {"type": "string"}, "description": "Optional attendee names"},
			"force": {"type": "boolean", "description": "Create even if it conflicts"}
		},
		"required": ["title", "range"]
	}`)
}

func (o *CreateEvent) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Title       string   `json:"title"`
		Range       string   `json:"range"`
		Location    string   `json:"location"`
		Description string   `json:"description"`
		Attendees   []string `json:"attendees"`
		Force       bool     `json:"force"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Title == "" {
		return "", fmt.Errorf("title is required")
	}
	r, err := interval.ParseRange(params.Range, o.planner.Location())
	if err != nil {
		return "", err
	}

	ev := &calendar.Event{
		Title:       params.Title,
		Start:       r.Start,
		End:         r.End,
		Location:    params.Location,
		Description: params.Description,
		Attendees:   params.Attendees,
	}
	created, forced, err := o.planner.CreateWithConflictCheck(ctx, ev, params.Force)
	if err != nil {
		var conflict *schedule.ConflictError
		if errors.As(err, &conflict) {
			return marshalResult(map[string]any{
				"created":   false,
				"conflicts": viewEvents(conflict.Conflicts, o.planner.Location()),
				"message":   "The requested time conflicts with existing events. Suggest alternatives or retry with force.",
			})
		}
		return "", err
	}
	return marshalResult(map[string]any{
		"created": true,
		"forced":  forced,
		"event":   viewEvent(created, o.planner.Location()),
	})
}

// UpdateEvent edits fields of an existing event.
type UpdateEvent struct{ planner *schedule.Planner }

func NewUpdateEvent(p *schedule.Planner) *UpdateEvent { return &UpdateEvent{planner: p} }

func (o *UpdateEvent) Name() string { return "update_event" }
func (o *UpdateEvent) Description() string {
	return "Update the title, time, location, or description of an event"
}
func (o *UpdateEvent) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"event_id": {"type": "string", "description": "Event id"},
			"title": {"type": "string", "description": "New title"},
			"range": {"type": "string", "description": "New time as start..end"},
			"location": {"type": "string", "description": "New location"},
			"description": {"type": "string", "description": "New description"}
		},
		"required": ["event_id"]
	}`)
}

func (o *UpdateEvent) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		EventID     string  `json:"event_id"`
		Title       *string `json:"title"`
		Range       *string `json:"range"`
		Location    *string `json:"location"`
		Description *string `json:"description"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.EventID == "" {
		return "", fmt.Errorf("event_id is required")
	}

	patch := calendar.Patch{
		Title:       params.Title,
		Location:    params.Location,
		Description: params.Description,
	}
	if params.Range != nil {
		r, err := interval.ParseRange(*params.Range, o.planner.Location())
		if err != nil {
			return "", err
		}
		patch.Start = &r.Start
		patch.End = &r.End
	}

	updated, err := o.planner.UpdateEvent(ctx, types.EventID(params.EventID), patch)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{"updated": true, "event": viewEvent(updated, o.planner.Location())})
}

// MoveEvent reschedules an event to a new range.
type MoveEvent struct{ planner *schedule.Planner }

func NewMoveEvent(p *schedule.Planner) *MoveEvent { return &MoveEvent{planner: p} }

func (o *MoveEvent) Name() string        { return "move_event" }
func (o *MoveEvent) Description() string { return "Move an existing event to a new time range" }
func (o *MoveEvent) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"event_id": {"type": "string", "description": "Event id"},
			"range": {"type": "string", "description": "New time as start..end, local ISO-8601 datetimes"}
		},
		"required": ["event_id", "range"]
	}`)
}

func (o *MoveEvent) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		EventID string `json:"event_id"`
		Range   string `json:"range"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	r, err := interval.ParseRange(params.Range, o.planner.Location())
	if err != nil {
		return "", err
	}

	moved, err := o.planner.MoveEvent(ctx, types.EventID(params.EventID), r)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{"moved": true, "event": viewEvent(moved, o.planner.Location())})
}

// DeleteEvent removes an event.
type DeleteEvent struct{ planner *schedule.Planner }

func NewDeleteEvent(p *schedule.Planner) *DeleteEvent { return &DeleteEvent{planner: p} }

func (o *DeleteEvent) Name() string        { return "delete_event" }
func (o *DeleteEvent) Description() string { return "Delete a calendar event by id" }
func (o *DeleteEvent) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"event_id": {"type": "string", "description": "Event id"}
		},
		"required": ["event_id"]
	}`)
}

func (o *DeleteEvent) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	removed, err := o.planner.RemoveEvent(ctx, types.EventID(params.EventID))
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{"deleted": true, "event": viewEvent(removed, o.planner.Location())})
}

// SuggestAlternatives finds free slots near a conflicting range.
type SuggestAlternatives struct{ planner *schedule.Planner }

func NewSuggestAlternatives(p *schedule.Planner) *SuggestAlternatives {
	return &SuggestAlternatives{planner: p}
}

func (o *SuggestAlternatives) Name() string { return "suggest_alternative_times" }
func (o *SuggestAlternatives) Description() string {
	return "Suggest free alternative slots near a conflicting time range"
}
func (o *SuggestAlternatives) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"range": {"type": "string", "description": "The conflicting range as start..end; the slot duration is taken from it"},
			"days_ahead": {"type": "integer", "description": "How many days forward to search (default 7)"}
		},
		"required": ["range"]
	}`)
}

func (o *SuggestAlternatives) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Range     string `json:"range"`
		DaysAhead int    `json:"days_ahead"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	r, err := interval.ParseRange(params.Range, o.planner.Location())
	if err != nil {
		return "", err
	}

	slots, err := o.planner.SuggestAlternatives(ctx, r, r.Duration(), params.DaysAhead)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{"suggestions": viewSlots(slots, o.planner.Location())})
}

// SuggestOptimal scores candidate slots for an activity.
type SuggestOptimal struct{ planner *schedule.Planner }

func NewSuggestOptimal(p *schedule.Planner) *SuggestOptimal { return &SuggestOptimal{planner: p} }

func (o *SuggestOptimal) Name() string { return "suggest_optimal_time" }
func (o *SuggestOptimal) Description() string {
	return "Suggest the best free slots for an activity, scored by time-of-day productivity"
}
func (o *SuggestOptimal) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"activity": {"type": "string", "description": "What the time is for, e.g. meeting, focus work, creative work, admin"},
			"duration_minutes": {"type": "integer", "description": "Slot length in minutes (default 60)"},
			"preferred_date": {"type": "string", "description": "Optional YYYY-MM-DD date to start searching from"},
			"days_ahead": {"type": "integer", "description": "How many days forward to search (default 7)"}
		},
		"required": ["activity"]
	}`)
}

func (o *SuggestOptimal) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Activity        string `json:"activity"`
		DurationMinutes int    `json:"duration_minutes"`
		PreferredDate   string `json:"preferred_date"`
		DaysAhead       int    `json:"days_ahead"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Activity == "" {
		return "", fmt.Errorf("activity is required")
	}

	duration := time.Duration(params.DurationMinutes) * time.Minute
	var preferred time.Time
	if params.PreferredDate != "" {
		var err error
		preferred, err = interval.ParseDate(params.PreferredDate, o.planner.Location())
		if err != nil {
			return "", err
		}
	}

	slots, err := o.planner.SuggestOptimal(ctx, params.Activity, duration, preferred, params.DaysAhead)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{
		"activity":    string(schedule.ClassifyActivity(params.Activity)),
		"suggestions": viewSlots(slots, o.planner.Location()),
	})
}

// ListUpcoming returns the next events on the calendar.
type ListUpcoming struct {
	planner *schedule.Planner
	now     func() time.Time
}

func NewListUpcoming(p *schedule.Planner) *ListUpcoming {
	return &ListUpcoming{planner: p, now: time.Now}
}

func (o *ListUpcoming) Name() string        { return "list_upcoming_events" }
func (o *ListUpcoming) Description() string { return "List the next upcoming calendar events" }
func (o *ListUpcoming) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"limit": {"type": "integer", "description": "Maximum number of events to return (default 10)"}
		}
	}`)
}

func (o *ListUpcoming) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Limit int `json:"limit"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("parse args: %w", err)
		}
	}

	events, err := o.planner.ListUpcoming(ctx, o.now(), params.Limit)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{"events": viewEvents(events, o.planner.Location())})
}

// EventsForDate lists events on a single calendar day.
type EventsForDate struct{ planner *schedule.Planner }

func NewEventsForDate(p *schedule.Planner) *EventsForDate { return &EventsForDate{planner: p} }

func (o *EventsForDate) Name() string        { return "get_events_for_date" }
func (o *EventsForDate) Description() string { return "List all events on a given date" }
func (o *EventsForDate) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"date": {"type": "string", "description": "Date as YYYY-MM-DD"}
		},
		"required": ["date"]
	}`)
}

func (o *EventsForDate) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	day, err := interval.ParseDate(params.Date, o.planner.Location())
	if err != nil {
		return "", err
	}

	r := interval.TimeRange{Start: day, End: day.AddDate(0, 0, 1)}
	events, err := o.planner.CheckConflicts(ctx, r)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{
		"date":   params.Date,
		"events": viewEvents(events, o.planner.Location()),
	})
}

// SearchEvents finds events by title or description.
type SearchEvents struct {
	planner *schedule.Planner
	now     func() time.Time
}

func NewSearchEvents(p *schedule.Planner) *SearchEvents {
	return &SearchEvents{planner: p, now: time.Now}
}

func (o *SearchEvents) Name() string        { return "search_events" }
func (o *SearchEvents) Description() string { return "Search upcoming events by title or description" }
func (o *SearchEvents) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Text to search for"},
			"limit": {"type": "integer", "description": "Maximum number of results (default 10)"}
		},
		"required": ["query"]
	}`)
}

func (o *SearchEvents) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Query == "" {
		return "", fmt.Errorf("query is required")
	}

	events, err := o.planner.SearchEvents(ctx, params.Query, o.now(), params.Limit)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{"events": viewEvents(events, o.planner.Location())})
}

// GetEvent fetches a single event by id.
type GetEvent struct{ planner *schedule.Planner }

func NewGetEvent(p *schedule.Planner) *GetEvent { return &GetEvent{planner: p} }

func (o *GetEvent) Name() string        { return "get_event_by_id" }
func (o *GetEvent) Description() string { return "Fetch a single calendar event by id" }
func (o *GetEvent) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"event_id": {"type": "string", "description": "Event id"}
		},
		"required": ["event_id"]
	}`)
}

func (o *GetEvent) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	ev, err := o.planner.GetEvent(ctx, types.EventID(params.EventID))
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{"event": viewEvent(ev, o.planner.Location())})
}
