package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/concierge/internal/types"
)

// Gateway routes inbound messages into turns. It resolves (or creates)
// threads, wraps each message in a Turn, and enqueues the turn for
// processing. Per-thread lanes guarantee at most one in-flight turn per
// thread.
type Gateway struct {
	threads  types.ThreadStore
	messages types.MessageStore
	Queue    *Queue
	Retry    *RetryPolicy

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Gateway wired to the provided stores with the given
// concurrency limit for simultaneous turn processing.
func New(threads types.ThreadStore, messages types.MessageStore, maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 2
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	return &Gateway{
		threads:  threads,
		messages: messages,
		Queue:    NewQueue(concurrency),
		Retry:    DefaultRetryPolicy(),
	}
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
	g.wg.Wait()
}

// TurnOption configures optional behavior on a Turn.
type TurnOption func(*Turn)

// WithOnComplete sets a callback invoked when the turn produces a final answer.
func WithOnComplete(fn func(*types.TurnResult)) TurnOption {
	return func(t *Turn) { t.OnComplete = fn }
}

// HandleInbound resolves or creates a thread for the message, wraps it in
// a Turn, and enqueues it for processing.
func (g *Gateway) HandleInbound(ctx context.Context, msg *types.InboundMessage, opts ...TurnOption) error {
	threadID, err := g.threads.ResolveOrCreate(ctx, msg.ThreadKey, msg.UserID)
	if err != nil {
		return fmt.Errorf("resolve thread: %w", err)
	}
	turn := NewTurn(threadID, msg)
	for _, opt := range opts {
		opt(turn)
	}
	return g.Queue.Enqueue(turn)
}

// Process enqueues the message and blocks until its turn completes,
// returning the final result. It is the synchronous counterpart to
// HandleInbound, used by the CLI chat and the HTTP API.
func (g *Gateway) Process(ctx context.Context, msg *types.InboundMessage) (*types.TurnResult, error) {
	done := make(chan *types.TurnResult, 1)
	err := g.HandleInbound(ctx, msg, WithOnComplete(func(res *types.TurnResult) {
		done <- res
	}))
	if err != nil {
		return nil, err
	}

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
