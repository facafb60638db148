package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/concierge/internal/convo"
	"github.com/user/concierge/internal/scheduler"
	"github.com/user/concierge/internal/types"
)

type mockGateway struct {
	lastThreadKey string
	lastPrompt    string
	response      string
}

func (m *mockGateway) HandleTask(threadKey, prompt string) (string, error) {
	m.lastThreadKey = threadKey
	m.lastPrompt = prompt
	return m.response, nil
}

func (m *mockGateway) Chat(_ context.Context, msg *types.InboundMessage) (*types.TurnResult, error) {
	m.lastThreadKey = string(msg.ThreadKey)
	m.lastPrompt = msg.Text
	return &types.TurnResult{
		Answer:     m.response,
		Capability: "calendar",
		ThreadID:   types.ThreadID("thread-1"),
	}, nil
}

func setupServer(t *testing.T, mock *mockGateway, tasks ...*scheduler.Task) *Server {
	t.Helper()
	dir := t.TempDir()
	store := scheduler.NewTaskStore(filepath.Join(dir, "tasks.json"))
	for _, task := range tasks {
		if err := store.Add(task); err != nil {
			t.Fatal(err)
		}
	}
	return NewServer(store, mock.HandleTask, mock.Chat, nil, nil)
}

func TestHealthEndpoint(t *testing.T) {
	mock := &mockGateway{response: "unused"}
	srv := setupServer(t, mock)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestChatEndpoint(t *testing.T) {
	mock := &mockGateway{response: "You are free Monday at 10."}
	srv := setupServer(t, mock)

	body := `{"message":"am I free Monday at 10?","thread_key":"api:u1"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["answer"] != "You are free Monday at 10." {
		t.Errorf("answer = %q", resp["answer"])
	}
	if resp["capability"] != "calendar" {
		t.Errorf("capability = %q", resp["capability"])
	}
	if resp["thread_id"] != "thread-1" {
		t.Errorf("thread_id = %q", resp["thread_id"])
	}
	if mock.lastThreadKey != "api:u1" {
		t.Errorf("thread key = %q", mock.lastThreadKey)
	}
}

func TestChatEndpointMissingFields(t *testing.T) {
	mock := &mockGateway{response: "unused"}
	srv := setupServer(t, mock)

	body := `{"message":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestWebhookAdHoc(t *testing.T) {
	mock := &mockGateway{response: "hello from the oracle"}
	srv := setupServer(t, mock)

	body := `{"prompt":"say hi","thread_key":"http:test"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["response"] != "hello from the oracle" {
		t.Errorf("expected 'hello from the oracle', got %q", resp["response"])
	}
	if mock.lastThreadKey != "http:test" {
		t.Errorf("expected thread key 'http:test', got %q", mock.lastThreadKey)
	}
	if mock.lastPrompt != "say hi" {
		t.Errorf("expected prompt 'say hi', got %q", mock.lastPrompt)
	}
}

func TestWebhookAdHocMissingFields(t *testing.T) {
	mock := &mockGateway{response: "unused"}
	srv := setupServer(t, mock)

	// Missing thread_key
	body := `{"prompt":"say hi"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestWebhookNamedTask(t *testing.T) {
	mock := &mockGateway{response: "greetings!"}
	task := &scheduler.Task{
		Name:      "greet",
		Prompt:    "say hello",
		ThreadKey: "http:greet-thread",
		Enabled:   true,
	}
	srv := setupServer(t, mock, task)

	req := httptest.NewRequest(http.MethodPost, "/webhook/greet", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["response"] != "greetings!" {
		t.Errorf("expected 'greetings!', got %q", resp["response"])
	}
	if mock.lastThreadKey != "http:greet-thread" {
		t.Errorf("expected thread key 'http:greet-thread', got %q", mock.lastThreadKey)
	}
	if mock.lastPrompt != "say hello" {
		t.Errorf("expected prompt 'say hello', got %q", mock.lastPrompt)
	}
}

func TestWebhookNamedTaskNotFound(t *testing.T) {
	mock := &mockGateway{response: "unused"}
	srv := setupServer(t, mock)

	req := httptest.NewRequest(http.MethodPost, "/webhook/nonexistent", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestWebhookNamedTaskDisabled(t *testing.T) {
	mock := &mockGateway{response: "unused"}
	task := &scheduler.Task{
		Name:      "off",
		Prompt:    "disabled task",
		ThreadKey: "http:off-thread",
		Enabled:   false,
	}
	srv := setupServer(t, mock, task)

	req := httptest.NewRequest(http.MethodPost, "/webhook/off", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", w.Code)
	}
}

func TestWebhookNamedTaskOverridePrompt(t *testing.T) {
	mock := &mockGateway{response: "custom response"}
	task := &scheduler.Task{
		Name:      "flex",
		Prompt:    "default prompt",
		ThreadKey: "http:flex-thread",
		Enabled:   true,
	}
	srv := setupServer(t, mock, task)

	body := `{"prompt":"override prompt"}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/flex", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["response"] != "custom response" {
		t.Errorf("expected 'custom response', got %q", resp["response"])
	}
	if mock.lastPrompt != "override prompt" {
		t.Errorf("expected prompt 'override prompt', got %q", mock.lastPrompt)
	}
	if mock.lastThreadKey != "http:flex-thread" {
		t.Errorf("expected thread key 'http:flex-thread', got %q", mock.lastThreadKey)
	}
}

func newThreadFixtures(t *testing.T) (*convo.ThreadStore, *convo.MessageStore, types.ThreadID) {
	t.Helper()
	dir := t.TempDir()
	threads := convo.NewThreadStore(dir)
	messages := convo.NewMessageStore(dir)

	ctx := context.Background()
	tid, err := threads.ResolveOrCreate(ctx, "test:key", "default")
	if err != nil {
		t.Fatal(err)
	}
	if err := messages.Append(ctx, &types.Message{
		ThreadID: tid,
		Role:     types.RoleUser,
		Kind:     types.KindUserMessage,
		Content:  "hello",
	}); err != nil {
		t.Fatal(err)
	}
	return threads, messages, tid
}

func TestAPIThreadsList(t *testing.T) {
	mock := &mockGateway{response: "unused"}
	taskStore := scheduler.NewTaskStore(filepath.Join(t.TempDir(), "tasks.json"))
	threads, messages, tid := newThreadFixtures(t)

	srv := NewServer(taskStore, mock.HandleTask, mock.Chat, threads, messages)

	req := httptest.NewRequest(http.MethodGet, "/api/threads", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var result []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(result))
	}
	if result[0]["thread_id"] != string(tid) {
		t.Errorf("expected thread_id %s, got %v", tid, result[0]["thread_id"])
	}
}

func TestAPIThreadMessages(t *testing.T) {
	mock := &mockGateway{response: "unused"}
	taskStore := scheduler.NewTaskStore(filepath.Join(t.TempDir(), "tasks.json"))
	threads, messages, tid := newThreadFixtures(t)

	srv := NewServer(taskStore, mock.HandleTask, mock.Chat, threads, messages)

	req := httptest.NewRequest(http.MethodGet, "/api/threads/"+string(tid)+"/messages", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var result []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 message, got %d", len(result))
	}
	if result[0]["content"] != "hello" {
		t.Errorf("message content = %v", result[0]["content"])
	}
}

func TestAPIThreadDelete(t *testing.T) {
	mock := &mockGateway{response: "unused"}
	taskStore := scheduler.NewTaskStore(filepath.Join(t.TempDir(), "tasks.json"))
	threads, messages, tid := newThreadFixtures(t)

	srv := NewServer(taskStore, mock.HandleTask, mock.Chat, threads, messages)

	req := httptest.NewRequest(http.MethodDelete, "/api/threads/"+string(tid), nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["deleted"] != true {
		t.Errorf("deleted = %v", resp["deleted"])
	}

	// Deleting again reports false without an error.
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/threads/"+string(tid), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("second delete status %d", w.Code)
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["deleted"] != false {
		t.Errorf("second delete = %v", resp["deleted"])
	}
}
