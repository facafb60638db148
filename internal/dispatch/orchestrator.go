// internal/dispatch/orchestrator.go
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/concierge/internal/attribution"
	"github.com/user/concierge/internal/gateway"
	"github.com/user/concierge/internal/types"
	"github.com/user/concierge/pkg/llm"
)

// PromptBuilder assembles the oracle message list for a turn from the
// thread's metadata and history.
type PromptBuilder interface {
	Build(ctx context.Context, thread *types.ThreadIndex, history []*types.Message, opNames []string) ([]llm.Message, error)
}

// Orchestrator implements the dispatch turn loop: user message in,
// zero or more operation rounds, final attributed answer out.
type Orchestrator struct {
	provider  llm.Provider
	builder   PromptBuilder
	threads   types.ThreadStore
	messages  types.MessageStore
	registry  *Registry
	retry     *gateway.RetryPolicy
	maxRounds int
	log       *slog.Logger
}

const historyWindow = 100

// New creates an Orchestrator with the given dependencies.
func New(
	provider llm.Provider,
	builder PromptBuilder,
	threads types.ThreadStore,
	messages types.MessageStore,
	registry *Registry,
	maxRounds int,
) *Orchestrator {
	if maxRounds <= 0 {
		maxRounds = 10
	}
	return &Orchestrator{
		provider:  provider,
		builder:   builder,
		threads:   threads,
		messages:  messages,
		registry:  registry,
		retry:     gateway.DefaultRetryPolicy(),
		maxRounds: maxRounds,
		log:       slog.Default(),
	}
}

// SetRetryPolicy overrides the retry policy used for oracle calls.
func (o *Orchestrator) SetRetryPolicy(p *gateway.RetryPolicy) {
	o.retry = p
}

// ProcessTurn executes the dispatch loop for a single turn.
// This is the function passed to Queue.SetProcessor.
func (o *Orchestrator) ProcessTurn(turn *gateway.Turn) error {
	ctx := turn.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Record the user message
	if err := o.messages.Append(ctx, &types.Message{
		ID:          types.NewMessageID(),
		ThreadID:    turn.ThreadID,
		TurnID:      turn.ID,
		Role:        types.RoleUser,
		Kind:        types.KindUserMessage,
		Content:     turn.Message.Text,
		TimestampMs: time.Now().UnixMilli(),
	}); err != nil {
		return fmt.Errorf("record user message: %w", err)
	}

	opNames := o.registry.Names()
	var opsUsed []string

	for round := 0; round < o.maxRounds; round++ {
		// 2. Load thread metadata
		thread, err := o.threads.Get(ctx, turn.ThreadID)
		if err != nil {
			return fmt.Errorf("load thread: %w", err)
		}

		// 3. Load recent history
		history, err := o.messages.History(ctx, turn.ThreadID, historyWindow)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}

		// 4. Build the prompt
		prompt, err := o.builder.Build(ctx, thread, history, opNames)
		if err != nil {
			return fmt.Errorf("build prompt: %w", err)
		}

		// 5. Consult the oracle. Failure here is terminal for the turn.
		var resp *llm.Response
		err = o.retry.Execute(func() error {
			var callErr error
			resp, callErr = o.provider.Complete(ctx, prompt, o.registry.AsOracleTools())
			return callErr
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
		}

		// 6. Operation round: record the directive, run the batch,
		// record each result in request order, then loop.
		if len(resp.ToolCalls) > 0 {
			calls := make([]types.OperationCall, len(resp.ToolCalls))
			for i, tc := range resp.ToolCalls {
				calls[i] = types.OperationCall{
					CallID:    tc.ID,
					Op:        tc.Function.Name,
					Arguments: tc.Function.Arguments,
				}
				opsUsed = append(opsUsed, tc.Function.Name)
			}

			directive, _ := json.Marshal(calls)
			if err := o.messages.Append(ctx, &types.Message{
				ID:          types.NewMessageID(),
				ThreadID:    turn.ThreadID,
				TurnID:      turn.ID,
				Role:        types.RoleTool,
				Kind:        types.KindOperationCall,
				Payload:     directive,
				TimestampMs: time.Now().UnixMilli(),
			}); err != nil {
				return fmt.Errorf("record operation directive: %w", err)
			}

			results := o.executeBatch(ctx, calls)
			for _, res := range results {
				payload, _ := json.Marshal(res)
				if err := o.messages.Append(ctx, &types.Message{
					ID:          types.NewMessageID(),
					ThreadID:    turn.ThreadID,
					TurnID:      turn.ID,
					Role:        types.RoleTool,
					Kind:        types.KindOperationResult,
					Payload:     payload,
					TimestampMs: time.Now().UnixMilli(),
				}); err != nil {
					return fmt.Errorf("record operation result: %w", err)
				}
			}
			continue
		}

		// 7. Final answer
		answer := resp.Content
		if answer == "" {
			answer = "Done."
		}
		return o.finishTurn(ctx, turn, answer, opsUsed)
	}

	// Round budget exhausted: close out with a best-effort answer
	// instead of failing the turn.
	o.log.Warn("operation round budget exhausted",
		"turn_id", string(turn.ID), "thread_id", string(turn.ThreadID), "rounds", o.maxRounds)
	answer := "I wasn't able to fully complete that request. Here is what I got done so far; please ask again if you need the rest."
	return o.finishTurn(ctx, turn, answer, opsUsed)
}

// finishTurn records the attributed assistant answer, refreshes thread
// metadata, and notifies the caller.
func (o *Orchestrator) finishTurn(ctx context.Context, turn *gateway.Turn, answer string, opsUsed []string) error {
	capability := attribution.Classify(opsUsed, answer)

	if err := o.messages.Append(ctx, &types.Message{
		ID:          types.NewMessageID(),
		ThreadID:    turn.ThreadID,
		TurnID:      turn.ID,
		Role:        types.RoleAssistant,
		Kind:        types.KindAssistantMessage,
		Content:     answer,
		Capability:  capability,
		TimestampMs: time.Now().UnixMilli(),
	}); err != nil {
		return fmt.Errorf("record assistant message: %w", err)
	}

	if err := o.updateThreadMeta(ctx, turn); err != nil {
		o.log.Warn("thread metadata update failed",
			"thread_id", string(turn.ThreadID), "error", err)
	}

	if turn.OnComplete != nil {
		turn.OnComplete(&types.TurnResult{
			Answer:     answer,
			Capability: capability,
			ThreadID:   turn.ThreadID,
		})
	}
	return nil
}

func (o *Orchestrator) updateThreadMeta(ctx context.Context, turn *gateway.Turn) error {
	thread, err := o.threads.Get(ctx, turn.ThreadID)
	if err != nil {
		return err
	}
	count, err := o.messages.Count(ctx, turn.ThreadID)
	if err != nil {
		return err
	}

	thread.MessageCount = count
	thread.LastMessageAt = time.Now()
	thread.LastTurnID = turn.ID
	if thread.Title == "" {
		thread.Title = deriveTitle(turn.Message.Text)
	}
	return o.threads.Update(ctx, thread)
}

const titleLimit = 60

// deriveTitle truncates the first user message into a thread title.
func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit-1]) + "…"
}

// executeBatch runs every call in the directive concurrently and
// reassembles the results in request order. Handler failures and
// unknown operations become error results; they never abort the batch.
func (o *Orchestrator) executeBatch(ctx context.Context, calls []types.OperationCall) []types.OperationResult {
	results := make([]types.OperationResult, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i] = o.executeCall(ctx, call)
			return nil
		})
	}
	g.Wait()

	return results
}

// executeCall runs a single operation, converting panics and handler
// errors into error results.
func (o *Orchestrator) executeCall(ctx context.Context, call types.OperationCall) (res types.OperationResult) {
	res = types.OperationResult{CallID: call.CallID, Op: call.Op}

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("operation panicked", "op", call.Op, "panic", r)
			res.Status = types.ResultError
			res.Result = ""
			res.Error = fmt.Sprintf("operation %q panicked: %v", call.Op, r)
		}
	}()

	op, ok := o.registry.Get(call.Op)
	if !ok {
		res.Status = types.ResultError
		res.Error = fmt.Sprintf("unknown operation %q", call.Op)
		return res
	}

	out, err := op.Execute(ctx, call.Arguments)
	if err != nil {
		res.Status = types.ResultError
		res.Error = err.Error()
		return res
	}

	res.Status = types.ResultOK
	res.Result = out
	return res
}
