// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type ThreadKey string
type ThreadID string
type TurnID string
type MessageID string
type EventID string

func NewThreadID() ThreadID {
	return ThreadID(uuid.New().String())
}

func NewTurnID() TurnID {
	return TurnID(uuid.New().String())
}

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

func NewEventID() EventID {
	return EventID(uuid.New().String())
}

func NewThreadKey(parts ...string) ThreadKey {
	return ThreadKey(strings.Join(parts, ":"))
}
