package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/concierge/internal/attribution"
	"github.com/user/concierge/internal/convo"
	"github.com/user/concierge/internal/gateway"
	"github.com/user/concierge/internal/types"
	"github.com/user/concierge/pkg/llm"
)

// mockProvider returns pre-configured responses.
type mockProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	err       error
	callCount int
}

func (m *mockProvider) Complete(_ context.Context, messages []llm.Message, tools []llm.Tool) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	idx := m.callCount
	m.callCount++
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return &llm.Response{Content: "fallback"}, nil
}

// stubBuilder flattens history into plain chat messages.
type stubBuilder struct{}

func (stubBuilder) Build(_ context.Context, _ *types.ThreadIndex, history []*types.Message, _ []string) ([]llm.Message, error) {
	out := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		out = append(out, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return out, nil
}

// conflictOp is a calendar-flavored test operation.
type conflictOp struct{}

func (conflictOp) Name() string                { return "check_conflicts" }
func (conflictOp) Description() string         { return "Check a time range for conflicts" }
func (conflictOp) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (conflictOp) Execute(_ context.Context, _ json.RawMessage) (string, error) {
	return `{"conflicts":[]}`, nil
}

// failingOp always returns an error.
type failingOp struct{}

func (failingOp) Name() string                { return "record_note" }
func (failingOp) Description() string         { return "Record a note" }
func (failingOp) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (failingOp) Execute(_ context.Context, _ json.RawMessage) (string, error) {
	return "", errors.New("disk full")
}

// slowEchoOp sleeps briefly then echoes its call arguments, for batch
// ordering tests.
type slowEchoOp struct {
	name  string
	delay time.Duration
}

func (o slowEchoOp) Name() string                { return o.name }
func (o slowEchoOp) Description() string         { return "Echo after a delay" }
func (o slowEchoOp) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (o slowEchoOp) Execute(_ context.Context, args json.RawMessage) (string, error) {
	time.Sleep(o.delay)
	return string(args), nil
}

type testEnv struct {
	threads  *convo.ThreadStore
	messages *convo.MessageStore
	threadID types.ThreadID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	threads := convo.NewThreadStore(dir)
	messages := convo.NewMessageStore(dir)

	id, err := threads.ResolveOrCreate(context.Background(), types.NewThreadKey("test", "user1"), "user1")
	if err != nil {
		t.Fatal(err)
	}
	return &testEnv{threads: threads, messages: messages, threadID: id}
}

func newTurn(env *testEnv, text string, onComplete func(*types.TurnResult)) *gateway.Turn {
	return &gateway.Turn{
		ID:       types.NewTurnID(),
		ThreadID: env.threadID,
		Message: &types.InboundMessage{
			Source:    "test",
			ThreadKey: types.NewThreadKey("test", "user1"),
			UserID:    "user1",
			Text:      text,
		},
		Status:     gateway.TurnStatusRunning,
		CreatedAt:  time.Now(),
		OnComplete: onComplete,
	}
}

func quickRetry() *gateway.RetryPolicy {
	return &gateway.RetryPolicy{MaxAttempts: 1, InitialDelay: 0, Multiplier: 1, MaxDelay: 0}
}

func TestProcessTurnSimpleAnswer(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockProvider{
		responses: []*llm.Response{{Content: "Xin chào! Tôi có thể giúp gì?"}},
	}

	orch := New(provider, stubBuilder{}, env.threads, env.messages, NewRegistry(), 10)

	var result *types.TurnResult
	done := make(chan struct{})
	turn := newTurn(env, "hi", func(res *types.TurnResult) {
		result = res
		close(done)
	})

	if err := orch.ProcessTurn(turn); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for callback")
	}

	if result.Answer != "Xin chào! Tôi có thể giúp gì?" {
		t.Errorf("unexpected answer %q", result.Answer)
	}
	if result.Capability != attribution.DefaultTag {
		t.Errorf("expected default capability, got %q", result.Capability)
	}
	if result.ThreadID != env.threadID {
		t.Errorf("wrong thread id in result")
	}

	// Messages recorded: user + assistant
	count, err := env.messages.Count(context.Background(), env.threadID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 messages, got %d", count)
	}
}

func TestProcessTurnWithOperationRound(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockProvider{
		responses: []*llm.Response{
			{
				ToolCalls: []llm.ToolCall{{
					ID:   "tc1",
					Type: "function",
					Function: llm.FunctionCall{
						Name:      "check_conflicts",
						Arguments: json.RawMessage(`{"range":"2026-03-02T10:00:00..2026-03-02T11:00:00"}`),
					},
				}},
			},
			{Content: "You're free at that time."},
		},
	}

	registry := NewRegistry()
	registry.Register(conflictOp{})
	orch := New(provider, stubBuilder{}, env.threads, env.messages, registry, 10)

	var result *types.TurnResult
	done := make(chan struct{})
	turn := newTurn(env, "am I free Monday at 10?", func(res *types.TurnResult) {
		result = res
		close(done)
	})

	if err := orch.ProcessTurn(turn); err != nil {
		t.Fatal(err)
	}
	<-done

	if result.Answer != "You're free at that time." {
		t.Errorf("unexpected answer %q", result.Answer)
	}
	if result.Capability != attribution.TagCalendar {
		t.Errorf("expected calendar capability, got %q", result.Capability)
	}

	// Messages: user + op_call + op_result + assistant = 4
	ctx := context.Background()
	history, err := env.messages.History(ctx, env.threadID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(history))
	}
	kinds := []string{
		types.KindUserMessage,
		types.KindOperationCall,
		types.KindOperationResult,
		types.KindAssistantMessage,
	}
	for i, want := range kinds {
		if history[i].Kind != want {
			t.Errorf("message %d kind = %s, want %s", i, history[i].Kind, want)
		}
	}

	var opRes types.OperationResult
	if err := json.Unmarshal(history[2].Payload, &opRes); err != nil {
		t.Fatal(err)
	}
	if opRes.Status != types.ResultOK || opRes.CallID != "tc1" {
		t.Errorf("unexpected operation result: %+v", opRes)
	}

	// Thread metadata refreshed.
	thread, err := env.threads.Get(ctx, env.threadID)
	if err != nil {
		t.Fatal(err)
	}
	if thread.MessageCount != 4 {
		t.Errorf("thread message count = %d", thread.MessageCount)
	}
	if thread.Title != "am I free Monday at 10?" {
		t.Errorf("thread title = %q", thread.Title)
	}
	if thread.LastTurnID != turn.ID {
		t.Errorf("thread last turn = %s", thread.LastTurnID)
	}
}

func TestProcessTurnUnknownOperation(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockProvider{
		responses: []*llm.Response{
			{
				ToolCalls: []llm.ToolCall{{
					ID: "tc1", Type: "function",
					Function: llm.FunctionCall{Name: "launch_rocket", Arguments: json.RawMessage(`{}`)},
				}},
			},
			{Content: "Sorry, I can't do that."},
		},
	}

	orch := New(provider, stubBuilder{}, env.threads, env.messages, NewRegistry(), 10)

	done := make(chan struct{})
	turn := newTurn(env, "launch", func(*types.TurnResult) { close(done) })

	// Registry misses are surfaced to the oracle, never to the caller.
	if err := orch.ProcessTurn(turn); err != nil {
		t.Fatal(err)
	}
	<-done

	history, err := env.messages.History(context.Background(), env.threadID, 10)
	if err != nil {
		t.Fatal(err)
	}
	var opRes types.OperationResult
	if err := json.Unmarshal(history[2].Payload, &opRes); err != nil {
		t.Fatal(err)
	}
	if opRes.Status != types.ResultError {
		t.Errorf("expected error result, got %+v", opRes)
	}
	if !strings.Contains(opRes.Error, "unknown operation") {
		t.Errorf("unexpected error text %q", opRes.Error)
	}
}

func TestProcessTurnHandlerError(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockProvider{
		responses: []*llm.Response{
			{
				ToolCalls: []llm.ToolCall{{
					ID: "tc1", Type: "function",
					Function: llm.FunctionCall{Name: "record_note", Arguments: json.RawMessage(`{}`)},
				}},
			},
			{Content: "I couldn't save that note."},
		},
	}

	registry := NewRegistry()
	registry.Register(failingOp{})
	orch := New(provider, stubBuilder{}, env.threads, env.messages, registry, 10)

	done := make(chan struct{})
	turn := newTurn(env, "note this down", func(*types.TurnResult) { close(done) })

	if err := orch.ProcessTurn(turn); err != nil {
		t.Fatal(err)
	}
	<-done

	history, err := env.messages.History(context.Background(), env.threadID, 10)
	if err != nil {
		t.Fatal(err)
	}
	var opRes types.OperationResult
	if err := json.Unmarshal(history[2].Payload, &opRes); err != nil {
		t.Fatal(err)
	}
	if opRes.Status != types.ResultError || opRes.Error != "disk full" {
		t.Errorf("unexpected operation result: %+v", opRes)
	}
}

func TestProcessTurnBatchOrder(t *testing.T) {
	env := newTestEnv(t)

	// Three calls in one directive; the first is slowest. Results must
	// still come back in request order.
	provider := &mockProvider{
		responses: []*llm.Response{
			{
				ToolCalls: []llm.ToolCall{
					{ID: "tc1", Type: "function", Function: llm.FunctionCall{Name: "op_a", Arguments: json.RawMessage(`{"n":1}`)}},
					{ID: "tc2", Type: "function", Function: llm.FunctionCall{Name: "op_b", Arguments: json.RawMessage(`{"n":2}`)}},
					{ID: "tc3", Type: "function", Function: llm.FunctionCall{Name: "op_c", Arguments: json.RawMessage(`{"n":3}`)}},
				},
			},
			{Content: "all done"},
		},
	}

	registry := NewRegistry()
	registry.Register(slowEchoOp{name: "op_a", delay: 50 * time.Millisecond})
	registry.Register(slowEchoOp{name: "op_b", delay: 10 * time.Millisecond})
	registry.Register(slowEchoOp{name: "op_c"})
	orch := New(provider, stubBuilder{}, env.threads, env.messages, registry, 10)

	done := make(chan struct{})
	turn := newTurn(env, "do three things", func(*types.TurnResult) { close(done) })

	if err := orch.ProcessTurn(turn); err != nil {
		t.Fatal(err)
	}
	<-done

	history, err := env.messages.History(context.Background(), env.threadID, 10)
	if err != nil {
		t.Fatal(err)
	}
	// user + op_call + 3 op_results + assistant = 6
	if len(history) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(history))
	}
	wantCallIDs := []string{"tc1", "tc2", "tc3"}
	for i, want := range wantCallIDs {
		var opRes types.OperationResult
		if err := json.Unmarshal(history[2+i].Payload, &opRes); err != nil {
			t.Fatal(err)
		}
		if opRes.CallID != want {
			t.Errorf("result %d has call id %s, want %s", i, opRes.CallID, want)
		}
		if opRes.Result != fmt.Sprintf(`{"n":%d}`, i+1) {
			t.Errorf("result %d payload %q", i, opRes.Result)
		}
	}
}

func TestProcessTurnMaxRoundsBestEffort(t *testing.T) {
	env := newTestEnv(t)

	// Provider always returns operation requests.
	responses := make([]*llm.Response, 20)
	for i := range responses {
		responses[i] = &llm.Response{
			ToolCalls: []llm.ToolCall{{
				ID: "tc1", Type: "function",
				Function: llm.FunctionCall{Name: "check_conflicts", Arguments: json.RawMessage(`{}`)},
			}},
		}
	}
	provider := &mockProvider{responses: responses}

	registry := NewRegistry()
	registry.Register(conflictOp{})
	orch := New(provider, stubBuilder{}, env.threads, env.messages, registry, 3)

	var result *types.TurnResult
	done := make(chan struct{})
	turn := newTurn(env, "loop forever", func(res *types.TurnResult) {
		result = res
		close(done)
	})

	// Budget exhaustion is not a turn failure; the user still gets an
	// answer.
	if err := orch.ProcessTurn(turn); err != nil {
		t.Fatal(err)
	}
	<-done

	if result.Answer == "" {
		t.Error("expected a best-effort answer")
	}
	if result.Capability != attribution.TagCalendar {
		t.Errorf("expected calendar capability from invoked ops, got %q", result.Capability)
	}

	// user + 3 rounds of (op_call + op_result) + assistant = 8
	count, err := env.messages.Count(context.Background(), env.threadID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 8 {
		t.Errorf("expected 8 messages, got %d", count)
	}
}

func TestProcessTurnOracleFailure(t *testing.T) {
	env := newTestEnv(t)
	provider := &mockProvider{err: errors.New("invalid api key")}

	orch := New(provider, stubBuilder{}, env.threads, env.messages, NewRegistry(), 10)
	orch.SetRetryPolicy(quickRetry())

	turn := newTurn(env, "hello", nil)
	err := orch.ProcessTurn(turn)
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}

	// The user message is preserved even though the turn failed.
	count, err := env.messages.Count(context.Background(), env.threadID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 message, got %d", count)
	}
}
