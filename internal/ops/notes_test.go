package ops

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/user/concierge/internal/notes"
)

func TestRecordAndListNotesOps(t *testing.T) {
	store := notes.NewStore(filepath.Join(t.TempDir(), "notes.jsonl"))

	record := NewRecordNote(store, testLoc)
	got := execute(t, record, `{"content": "mua sữa cho bé", "category": "shopping"}`)
	if got["recorded"] != true {
		t.Fatalf("result = %v", got)
	}
	if got["note"].(map[string]any)["content"] != "mua sữa cho bé" {
		t.Errorf("note = %v", got["note"])
	}
	execute(t, record, `{"content": "call dentist"}`)

	list := NewListNotes(store, testLoc)
	all := execute(t, list, `{}`)
	if len(all["notes"].([]any)) != 2 {
		t.Errorf("notes = %v", all["notes"])
	}

	shopping := execute(t, list, `{"category": "shopping"}`)
	items := shopping["notes"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["content"] != "mua sữa cho bé" {
		t.Errorf("filtered notes = %v", items)
	}
}

func TestRecordNoteOpRejectsEmpty(t *testing.T) {
	store := notes.NewStore(filepath.Join(t.TempDir(), "notes.jsonl"))
	op := NewRecordNote(store, testLoc)
	if _, err := op.Execute(context.Background(), json.RawMessage(`{"content": ""}`)); err == nil {
		t.Error("accepted an empty note")
	}
}
