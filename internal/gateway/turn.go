package gateway

import (
	"context"
	"time"

	"github.com/user/concierge/internal/types"
)

// TurnStatus represents the lifecycle state of a Turn.
type TurnStatus string

const (
	TurnStatusQueued   TurnStatus = "queued"
	TurnStatusRunning  TurnStatus = "running"
	TurnStatusComplete TurnStatus = "complete"
	TurnStatusFailed   TurnStatus = "failed"
)

// Turn tracks a single execution of an inbound message against a thread.
type Turn struct {
	ID         types.TurnID
	ThreadID   types.ThreadID
	Message    *types.InboundMessage
	Status     TurnStatus
	Attempts   int
	CreatedAt  time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
	Error      error
	Ctx        context.Context
	OnComplete func(result *types.TurnResult)
}

// NewTurn creates a Turn in the Queued state for the given thread and message.
func NewTurn(threadID types.ThreadID, msg *types.InboundMessage) *Turn {
	return &Turn{
		ID:        types.NewTurnID(),
		ThreadID:  threadID,
		Message:   msg,
		Status:    TurnStatusQueued,
		Attempts:  0,
		CreatedAt: time.Now(),
	}
}
