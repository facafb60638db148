package llm

import (
	"context"
	"encoding/json"
	"testing"
)

// MockProvider is a test double that satisfies the Provider interface.
type MockProvider struct {
	CompleteFunc func(ctx context.Context, messages []Message, tools []Tool) (*Response, error)
}

func (m *MockProvider) Complete(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages, tools)
	}
	return &Response{Content: "mock response"}, nil
}

func TestProviderInterface(t *testing.T) {
	var provider Provider = &MockProvider{}
	ctx := context.Background()
	messages := []Message{{Role: "user", Content: "test"}}

	resp, err := provider.Complete(ctx, messages, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content == "" {
		t.Error("expected non-empty response")
	}
}

func TestMockProviderCustomComplete(t *testing.T) {
	mock := &MockProvider{
		CompleteFunc: func(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
			return &Response{
				Content: "custom response",
				ToolCalls: []ToolCall{{
					ID:   "call-1",
					Type: "function",
					Function: FunctionCall{
						Name:      "check_conflicts",
						Arguments: json.RawMessage(`{}`),
					},
				}},
				Usage: Usage{
					InputTokens:  10,
					OutputTokens: 5,
					TotalTokens:  15,
				},
			}, nil
		},
	}

	var provider Provider = mock
	ctx := context.Background()
	messages := []Message{{Role: "user", Content: "hello"}}

	resp, err := provider.Complete(ctx, messages, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "custom response" {
		t.Errorf("expected 'custom response', got %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Function.Name != "check_conflicts" {
		t.Errorf("unexpected tool calls: %+v", resp.ToolCalls)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("expected 15 total tokens, got %d", resp.Usage.TotalTokens)
	}
}
