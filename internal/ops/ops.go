// Package ops implements the executable operations the orchestrator can
// invoke: calendar scheduling, expense tracking, notes, web reading, and
// date parsing.
package ops

import (
	"time"

	"github.com/user/concierge/internal/dispatch"
	"github.com/user/concierge/internal/finance"
	"github.com/user/concierge/internal/notes"
	"github.com/user/concierge/internal/schedule"
)

// RegisterAll wires every operation into the registry. Nil stores skip
// the operations that depend on them; an empty braveKey skips web search.
func RegisterAll(reg *dispatch.Registry, planner *schedule.Planner, expenses *finance.Store, noteStore *notes.Store, braveKey string, loc *time.Location) {
	if planner != nil {
		reg.Register(NewCheckConflicts(planner))
		reg.Register(NewCheckAvailability(planner))
		reg.Register(NewCreateEvent(planner))
		reg.Register(NewUpdateEvent(planner))
		reg.Register(NewMoveEvent(planner))
		reg.Register(NewDeleteEvent(planner))
		reg.Register(NewSuggestAlternatives(planner))
		reg.Register(NewSuggestOptimal(planner))
		reg.Register(NewListUpcoming(planner))
		reg.Register(NewEventsForDate(planner))
		reg.Register(NewSearchEvents(planner))
		reg.Register(NewGetEvent(planner))
	}
	if expenses != nil {
		reg.Register(NewAddExpense(expenses, loc))
		reg.Register(NewExpenseHistory(expenses, loc))
		reg.Register(NewTotalSpending(expenses, loc))
		reg.Register(NewDeleteExpense(expenses))
	}
	if noteStore != nil {
		reg.Register(NewRecordNote(noteStore, loc))
		reg.Register(NewListNotes(noteStore, loc))
	}
	if braveKey != "" {
		reg.Register(NewWebSearch(braveKey))
	}
	reg.Register(NewReadURL())
	reg.Register(NewParseDate(loc))
}
