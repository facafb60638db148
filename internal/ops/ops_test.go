package ops

import (
	"path/filepath"
	"testing"

	"github.com/user/concierge/internal/dispatch"
	"github.com/user/concierge/internal/notes"
)

func TestRegisterAll(t *testing.T) {
	planner, _ := newTestPlanner(t)
	expenses := newTestExpenses(t)
	noteStore := notes.NewStore(filepath.Join(t.TempDir(), "notes.jsonl"))

	reg := dispatch.NewRegistry()
	RegisterAll(reg, planner, expenses, noteStore, "brave-key", testLoc)

	want := []string{
		"add_expense",
		"check_availability",
		"check_conflicts",
		"create_event_with_conflict_check",
		"delete_event",
		"delete_expense",
		"get_event_by_id",
		"get_events_for_date",
		"get_expense_history",
		"get_total_spending",
		"list_notes",
		"list_upcoming_events",
		"move_event",
		"read_url",
		"record_note",
		"search_events",
		"suggest_alternative_times",
		"suggest_optimal_time",
		"update_event",
		"vn_parse_date",
		"web_search",
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("got %d operations, want %d: %v", len(got), len(want), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("names[%d] = %s, want %s", i, got[i], name)
		}
	}
}

func TestRegisterAllSkipsNilStores(t *testing.T) {
	reg := dispatch.NewRegistry()
	RegisterAll(reg, nil, nil, nil, "", testLoc)

	if _, ok := reg.Get("read_url"); !ok {
		t.Error("read_url missing")
	}
	if _, ok := reg.Get("web_search"); ok {
		t.Error("web_search registered without an API key")
	}
	if _, ok := reg.Get("vn_parse_date"); !ok {
		t.Error("vn_parse_date missing")
	}
	if _, ok := reg.Get("check_conflicts"); ok {
		t.Error("calendar operation registered without a planner")
	}
}
