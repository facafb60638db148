package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/concierge/pkg/llm"
)

func TestOpenAIClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing or invalid auth header")
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"role":    "assistant",
						"content": "test response",
					},
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     10,
				"completion_tokens": 5,
				"total_tokens":      15,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	config := &llm.Config{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
	}
	client := New(config)

	ctx := context.Background()
	messages := []llm.Message{
		{Role: "user", Content: "hello"},
	}

	resp, err := client.Complete(ctx, messages, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "test response" {
		t.Errorf("expected 'test response', got %s", resp.Content)
	}
	if resp.Usage.InputTokens != 10 {
		t.Errorf("expected 10 input tokens, got %d", resp.Usage.InputTokens)
	}
	if resp.Usage.OutputTokens != 5 {
		t.Errorf("expected 5 output tokens, got %d", resp.Usage.OutputTokens)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("expected 15 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestOpenAIClientRequestFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify the request path: base_url includes /v1, client appends /chat/completions
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected path '/v1/chat/completions', got %q", r.URL.Path)
		}

		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type 'application/json', got %q", r.Header.Get("Content-Type"))
		}

		body, _ := io.ReadAll(r.Body)
		var reqBody map[string]any
		json.Unmarshal(body, &reqBody)

		if reqBody["model"] != "gpt-4o" {
			t.Errorf("expected model 'gpt-4o', got %v", reqBody["model"])
		}

		messages, ok := reqBody["messages"].([]any)
		if !ok || len(messages) != 3 {
			t.Fatalf("expected 3 messages, got %v", reqBody["messages"])
		}

		// Tool result messages must carry their call id through.
		last, _ := messages[2].(map[string]any)
		if last["role"] != "tool" || last["tool_call_id"] != "call-1" {
			t.Errorf("tool message not preserved: %v", last)
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "ok"}},
			},
			"usage": map[string]any{
				"prompt_tokens":     1,
				"completion_tokens": 1,
				"total_tokens":      2,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	config := &llm.Config{
		BaseURL: server.URL + "/v1",
		APIKey:  "key",
		Model:   "gpt-4o",
	}
	client := New(config)

	_, err := client.Complete(context.Background(), []llm.Message{
		{Role: "user", Content: "schedule lunch"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{{
			ID:   "call-1",
			Type: "function",
			Function: llm.FunctionCall{
				Name:      "check_conflicts",
				Arguments: json.RawMessage(`{}`),
			},
		}}},
		{Role: "tool", Content: `{"status":"ok"}`, ToolCallID: "call-1"},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
}

func TestOpenAIClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	client := New(&llm.Config{BaseURL: server.URL, APIKey: "key", Model: "gpt-4o"})
	_, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "x"}}, nil)
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
