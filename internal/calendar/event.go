// Package calendar owns the event model and the event store the
// scheduling engine reads from and writes through.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/user/concierge/internal/interval"
	"github.com/user/concierge/internal/types"
)

// ErrNotFound is returned when an event id does not exist.
var ErrNotFound = errors.New("event not found")

// Event is a single calendar entry. Times are instants; display uses
// the reference timezone.
type Event struct {
	ID          types.EventID `json:"id"`
	Title       string        `json:"title"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	Location    string        `json:"location,omitempty"`
	Description string        `json:"description,omitempty"`
	Attendees   []string      `json:"attendees,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Range returns the event's time range.
func (e *Event) Range() interval.TimeRange {
	return interval.TimeRange{Start: e.Start, End: e.End}
}

// Patch carries optional field updates; nil fields are left unchanged.
type Patch struct {
	Title       *string
	Start       *time.Time
	End         *time.Time
	Location    *string
	Description *string
}

// Store is the event store the scheduling engine delegates to. The
// engine never mutates events directly; every write goes through here.
type Store interface {
	// ListEvents returns events intersecting r, ordered by start time.
	ListEvents(ctx context.Context, r interval.TimeRange) ([]*Event, error)
	// ListUpcoming returns up to limit events starting at or after from.
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*Event, error)
	// Search returns up to limit events at or after from whose title or
	// description matches query.
	Search(ctx context.Context, query string, from time.Time, limit int) ([]*Event, error)
	GetEvent(ctx context.Context, id types.EventID) (*Event, error)
	CreateEvent(ctx context.Context, ev *Event) (*Event, error)
	UpdateEvent(ctx context.Context, id types.EventID, p Patch) (*Event, error)
	DeleteEvent(ctx context.Context, id types.EventID) error
}
