// Package notes is a small append-only note store backed by a JSONL file.
package notes

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Note is a single recorded note.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists notes as one JSON object per line.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Record appends a note and returns it with id and timestamp set.
func (s *Store) Record(content, category string) (*Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("note content is required")
	}

	note := &Note{
		ID:        uuid.New().String(),
		Content:   content,
		Category:  strings.TrimSpace(category),
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, fmt.Errorf("create notes dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := json.Marshal(note)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return nil, err
	}
	return note, nil
}

// List returns notes in insertion order. An empty category matches all
// notes; otherwise the match is case-insensitive.
func (s *Store) List(category string) ([]*Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	if category == "" {
		return all, nil
	}

	want := strings.ToLower(strings.TrimSpace(category))
	var matched []*Note
	for _, n := range all {
		if strings.ToLower(n.Category) == want {
			matched = append(matched, n)
		}
	}
	return matched, nil
}

// Delete removes a note by id. It reports whether a note was removed.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return false, err
	}

	var kept []*Note
	found := false
	for _, n := range all {
		if n.ID == id {
			found = true
			continue
		}
		kept = append(kept, n)
	}
	if !found {
		return false, nil
	}

	var buf strings.Builder
	for _, n := range kept {
		data, err := json.Marshal(n)
		if err != nil {
			return false, err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0644); err != nil {
		return false, err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) readAll() ([]*Note, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var all []*Note
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var n Note
		if err := json.Unmarshal([]byte(line), &n); err != nil {
			continue
		}
		all = append(all, &n)
	}
	return all, scanner.Err()
}
