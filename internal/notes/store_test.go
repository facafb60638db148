package notes

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "notes.jsonl"))
}

func TestRecordAndList(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Record("buy milk", "shopping")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if first.ID == "" {
		t.Fatal("Record did not assign an id")
	}
	if _, err := store.Record("call dentist", ""); err != nil {
		t.Fatalf("Record: %v", err)
	}

	all, err := store.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d notes, want 2", len(all))
	}
	if all[0].Content != "buy milk" || all[1].Content != "call dentist" {
		t.Errorf("wrong order: %q, %q", all[0].Content, all[1].Content)
	}
}

func TestRecordRejectsEmpty(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Record("   ", ""); err == nil {
		t.Error("Record accepted blank content")
	}
}

func TestListFiltersByCategory(t *testing.T) {
	store := newTestStore(t)
	mustRecord(t, store, "pay rent", "Finance")
	mustRecord(t, store, "gym at 7", "health")
	mustRecord(t, store, "tax deadline", "finance")

	finance, err := store.List("FINANCE")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(finance) != 2 {
		t.Fatalf("got %d finance notes, want 2", len(finance))
	}
	if finance[0].Content != "pay rent" || finance[1].Content != "tax deadline" {
		t.Errorf("wrong notes: %q, %q", finance[0].Content, finance[1].Content)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	note := mustRecord(t, store, "temp", "")
	mustRecord(t, store, "keep me", "")

	removed, err := store.Delete(note.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Fatal("Delete reported nothing removed")
	}

	again, err := store.Delete(note.ID)
	if err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if again {
		t.Error("second Delete reported a removal")
	}

	all, err := store.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].Content != "keep me" {
		t.Errorf("unexpected notes after delete: %+v", all)
	}
}

func TestListEmptyStore(t *testing.T) {
	store := newTestStore(t)
	all, err := store.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("got %d notes from empty store, want 0", len(all))
	}
}

func mustRecord(t *testing.T, store *Store, content, category string) *Note {
	t.Helper()
	n, err := store.Record(content, category)
	if err != nil {
		t.Fatalf("Record %q: %v", content, err)
	}
	return n
}
