// internal/convo/message.go
package convo

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/concierge/internal/types"
)

// MessageStore is a JSONL-backed append-only message log.
// Messages are stored per-thread in threads/<threadID>/messages.jsonl.
type MessageStore struct {
	root  string
	mu    sync.Mutex
	locks map[types.ThreadID]*sync.Mutex
}

// NewMessageStore creates a new file-backed MessageStore rooted at the given directory.
func NewMessageStore(root string) *MessageStore {
	return &MessageStore{
		root:  root,
		locks: make(map[types.ThreadID]*sync.Mutex),
	}
}

// getLock returns the per-thread mutex, creating one if it doesn't exist.
func (m *MessageStore) getLock(threadID types.ThreadID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lock, ok := m.locks[threadID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	m.locks[threadID] = lock
	return lock
}

func (m *MessageStore) messagesPath(threadID types.ThreadID) string {
	return filepath.Join(m.root, "threads", string(threadID), "messages.jsonl")
}

// count reads the message file and counts lines. Caller must hold the thread lock.
func (m *MessageStore) count(threadID types.ThreadID) (int64, error) {
	f, err := os.Open(m.messagesPath(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open messages file: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan messages file: %w", err)
	}
	return count, nil
}

// Append adds a message to the thread's log with an auto-incremented
// sequence number. Seq is the authoritative ordering; timestamps are
// informational only.
func (m *MessageStore) Append(_ context.Context, msg *types.Message) error {
	lock := m.getLock(msg.ThreadID)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Dir(m.messagesPath(msg.ThreadID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create thread dir: %w", err)
	}

	existing, err := m.count(msg.ThreadID)
	if err != nil {
		return err
	}
	msg.Seq = existing + 1

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	f, err := os.OpenFile(m.messagesPath(msg.ThreadID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open messages file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}

	return nil
}

// History returns the last N messages for the given thread, in insertion order.
func (m *MessageStore) History(_ context.Context, threadID types.ThreadID, limit int) ([]*types.Message, error) {
	lock := m.getLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(m.messagesPath(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open messages file: %w", err)
	}
	defer f.Close()

	var messages []*types.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var msg types.Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan messages file: %w", err)
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return messages, nil
}

// Count returns the number of messages for the given thread.
func (m *MessageStore) Count(_ context.Context, threadID types.ThreadID) (int64, error) {
	lock := m.getLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	return m.count(threadID)
}
