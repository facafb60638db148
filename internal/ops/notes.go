package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/user/concierge/internal/interval"
	"github.com/user/concierge/internal/notes"
)

type noteView struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Category  string `json:"category,omitempty"`
	CreatedAt string `json:"created_at"`
}

func viewNote(n *notes.Note, loc *time.Location) noteView {
	return noteView{
		ID:        n.ID,
		Content:   n.Content,
		Category:  n.Category,
		CreatedAt: n.CreatedAt.In(loc).Format(interval.DateTimeLayout),
	}
}

// RecordNote saves a free-form note.
type RecordNote struct {
	store *notes.Store
	loc   *time.Location
}

func NewRecordNote(store *notes.Store, loc *time.Location) *RecordNote {
	return &RecordNote{store: store, loc: loc}
}

func (o *RecordNote) Name() string        { return "record_note" }
func (o *RecordNote) Description() string { return "Save a note or reminder for the user" }
func (o *RecordNote) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {"type": "string", "description": "The note text"},
			"category": {"type": "string", "description": "Optional category label"}
		},
		"required": ["content"]
	}`)
}

func (o *RecordNote) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Content  string `json:"content"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}

	note, err := o.store.Record(params.Content, params.Category)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{"recorded": true, "note": viewNote(note, o.loc)})
}

// ListNotes returns saved notes.
type ListNotes struct {
	store *notes.Store
	loc   *time.Location
}

func NewListNotes(store *notes.Store, loc *time.Location) *ListNotes {
	return &ListNotes{store: store, loc: loc}
}

func (o *ListNotes) Name() string        { return "list_notes" }
func (o *ListNotes) Description() string { return "List saved notes, optionally filtered by category" }
func (o *ListNotes) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"category": {"type": "string", "description": "Optional category filter"}
		}
	}`)
}

func (o *ListNotes) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Category string `json:"category"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("parse args: %w", err)
		}
	}

	all, err := o.store.List(params.Category)
	if err != nil {
		return "", err
	}
	views := make([]noteView, len(all))
	for i, n := range all {
		views[i] = viewNote(n, o.loc)
	}
	return marshalResult(map[string]any{"notes": views})
}
