// internal/types/models.go
package types

import (
	"encoding/json"
	"time"
)

// Message roles as stored in a thread's history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message kinds. A kind refines the role: operation directives and
// operation results are both tool-role messages.
const (
	KindUserMessage      = "user_message"
	KindAssistantMessage = "assistant_message"
	KindOperationCall    = "op_call"
	KindOperationResult  = "op_result"
)

// Message is one immutable entry in a thread's append-only history.
// Seq is assigned on append and is the authoritative ordering;
// TimestampMs is display-only.
type Message struct {
	ID          MessageID       `json:"id"`
	ThreadID    ThreadID        `json:"thread_id"`
	TurnID      TurnID          `json:"turn_id,omitempty"`
	Seq         int64           `json:"seq"`
	Role        string          `json:"role"`
	Kind        string          `json:"kind"`
	Content     string          `json:"content,omitempty"`
	Capability  string          `json:"capability,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	TimestampMs int64           `json:"timestamp_ms"`
}

// OperationCall is one operation request inside a directive message.
type OperationCall struct {
	CallID    string          `json:"call_id"`
	Op        string          `json:"op"`
	Arguments json.RawMessage `json:"arguments"`
}

// OperationResult statuses.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// OperationResult is the outcome of one operation call, serialized into
// a tool-result message. Errors are carried explicitly, never dropped.
type OperationResult struct {
	CallID string `json:"call_id"`
	Op     string `json:"op"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Thread statuses.
const (
	ThreadStatusActive  = "active"
	ThreadStatusDeleted = "deleted"
)

// ThreadIndex is the lightweight per-thread metadata record.
type ThreadIndex struct {
	ThreadID      ThreadID  `json:"thread_id"`
	ThreadKey     ThreadKey `json:"thread_key"`
	UserID        string    `json:"user_id,omitempty"`
	Title         string    `json:"title,omitempty"`
	Status        string    `json:"status"`
	MessageCount  int64     `json:"message_count"`
	LastMessageAt time.Time `json:"last_message_at,omitzero"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastTurnID    TurnID    `json:"last_turn_id,omitempty"`
}

// InboundMessage is a user message arriving from any transport.
type InboundMessage struct {
	Source    string          `json:"source"`
	ThreadKey ThreadKey       `json:"thread_key"`
	UserID    string          `json:"user_id"`
	Text      string          `json:"text"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// TurnResult is what one completed dispatch turn hands back to the caller.
type TurnResult struct {
	Answer     string   `json:"answer"`
	Capability string   `json:"capability"`
	ThreadID   ThreadID `json:"thread_id"`
}
