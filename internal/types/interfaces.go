// internal/types/interfaces.go
package types

import (
	"context"
)

type ThreadStore interface {
	ResolveOrCreate(ctx context.Context, key ThreadKey, userID string) (ThreadID, error)
	Get(ctx context.Context, id ThreadID) (*ThreadIndex, error)
	List(ctx context.Context) ([]*ThreadIndex, error)
	Update(ctx context.Context, thread *ThreadIndex) error
	SoftDelete(ctx context.Context, id ThreadID) (bool, error)
}

type MessageStore interface {
	Append(ctx context.Context, msg *Message) error
	History(ctx context.Context, threadID ThreadID, limit int) ([]*Message, error)
	Count(ctx context.Context, threadID ThreadID) (int64, error)
}
