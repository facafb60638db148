// internal/convo/thread.go
package convo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/concierge/internal/types"
)

// ThreadStore is a JSON-file-backed thread index.
// It stores thread metadata in threads/threads.json and creates
// per-thread directories at threads/<threadID>/.
type ThreadStore struct {
	root string
	mu   sync.RWMutex
}

// NewThreadStore creates a new file-backed ThreadStore rooted at the given directory.
func NewThreadStore(root string) *ThreadStore {
	return &ThreadStore{root: root}
}

func (s *ThreadStore) indexPath() string {
	return filepath.Join(s.root, "threads", "threads.json")
}

func (s *ThreadStore) threadsDir() string {
	return filepath.Join(s.root, "threads")
}

func (s *ThreadStore) threadDir(id types.ThreadID) string {
	return filepath.Join(s.root, "threads", string(id))
}

// loadIndex reads threads.json and returns a map keyed by ThreadKey.
func (s *ThreadStore) loadIndex() (map[types.ThreadKey]*types.ThreadIndex, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[types.ThreadKey]*types.ThreadIndex), nil
		}
		return nil, fmt.Errorf("read thread index: %w", err)
	}

	var threads []*types.ThreadIndex
	if err := json.Unmarshal(data, &threads); err != nil {
		return nil, fmt.Errorf("unmarshal thread index: %w", err)
	}

	index := make(map[types.ThreadKey]*types.ThreadIndex, len(threads))
	for _, th := range threads {
		index[th.ThreadKey] = th
	}
	return index, nil
}

// saveIndex converts the map to a slice, marshals with indentation, and writes atomically.
func (s *ThreadStore) saveIndex(index map[types.ThreadKey]*types.ThreadIndex) error {
	threads := make([]*types.ThreadIndex, 0, len(index))
	for _, th := range index {
		threads = append(threads, th)
	}

	data, err := json.MarshalIndent(threads, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal thread index: %w", err)
	}

	if err := os.MkdirAll(s.threadsDir(), 0o755); err != nil {
		return fmt.Errorf("create threads dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp index: %w", err)
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp index: %w", err)
	}
	return nil
}

// ResolveOrCreate returns the ThreadID for the given key, creating a new
// thread if needed. A soft-deleted thread under the same key is replaced
// by a fresh one.
func (s *ThreadStore) ResolveOrCreate(_ context.Context, key types.ThreadKey, userID string) (types.ThreadID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return "", err
	}

	if existing, ok := index[key]; ok && existing.Status == types.ThreadStatusActive {
		return existing.ThreadID, nil
	}

	now := time.Now()
	id := types.NewThreadID()
	thread := &types.ThreadIndex{
		ThreadID:  id,
		ThreadKey: key,
		UserID:    userID,
		Status:    types.ThreadStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	index[key] = thread

	if err := s.saveIndex(index); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.threadDir(id), 0o755); err != nil {
		return "", fmt.Errorf("create thread dir: %w", err)
	}

	return id, nil
}

// Get returns the thread with the given ID.
func (s *ThreadStore) Get(_ context.Context, id types.ThreadID) (*types.ThreadIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	for _, th := range index {
		if th.ThreadID == id {
			return th, nil
		}
	}
	return nil, fmt.Errorf("thread not found: %s", id)
}

// List returns all threads, soft-deleted ones included.
func (s *ThreadStore) List(_ context.Context) ([]*types.ThreadIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.loadIndex()
	if err != nil {
		return nil, err
	}

	threads := make([]*types.ThreadIndex, 0, len(index))
	for _, th := range index {
		threads = append(threads, th)
	}
	return threads, nil
}

// Update persists changes to the given thread, setting UpdatedAt to now.
func (s *ThreadStore) Update(_ context.Context, thread *types.ThreadIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return err
	}

	if _, ok := index[thread.ThreadKey]; !ok {
		return fmt.Errorf("thread not found: %s", thread.ThreadKey)
	}

	thread.UpdatedAt = time.Now()
	index[thread.ThreadKey] = thread

	return s.saveIndex(index)
}

// SoftDelete marks the thread deleted, keeping its message log on disk.
// It reports whether the thread was active before the call; deleting an
// already-deleted or unknown thread returns false without error.
func (s *ThreadStore) SoftDelete(_ context.Context, id types.ThreadID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return false, err
	}

	for _, th := range index {
		if th.ThreadID != id {
			continue
		}
		if th.Status == types.ThreadStatusDeleted {
			return false, nil
		}
		th.Status = types.ThreadStatusDeleted
		th.UpdatedAt = time.Now()
		return true, s.saveIndex(index)
	}
	return false, nil
}
