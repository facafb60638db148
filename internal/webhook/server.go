// internal/webhook/server.go
package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/user/concierge/internal/scheduler"
	"github.com/user/concierge/internal/types"
)

// TaskHandler processes a prompt within the given thread and returns
// the final answer text.
type TaskHandler func(threadKey, prompt string) (string, error)

// ChatHandler runs one full conversational turn. gateway.Process
// satisfies this.
type ChatHandler func(ctx context.Context, msg *types.InboundMessage) (*types.TurnResult, error)

// Server is the HTTP surface: the chat endpoint, thread APIs, and
// webhook-triggered tasks.
type Server struct {
	tasks    *scheduler.TaskStore
	handler  TaskHandler
	chat     ChatHandler
	threads  types.ThreadStore
	messages types.MessageStore
	mux      *http.ServeMux
}

// NewServer creates a Server with the given task store and callbacks.
func NewServer(tasks *scheduler.TaskStore, handler TaskHandler, chat ChatHandler, threads types.ThreadStore, messages types.MessageStore) *Server {
	s := &Server{
		tasks:    tasks,
		handler:  handler,
		chat:     chat,
		threads:  threads,
		messages: messages,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("POST /webhook", s.handleAdHoc)
	s.mux.HandleFunc("POST /webhook/", s.handleNamedTask)
	s.mux.HandleFunc("GET /api/threads", s.handleAPIThreads)
	s.mux.HandleFunc("GET /api/threads/", s.handleAPIThreadMessages)
	s.mux.HandleFunc("DELETE /api/threads/", s.handleAPIThreadDelete)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// chatRequest is the JSON body for POST /chat.
type chatRequest struct {
	Message   string `json:"message"`
	ThreadKey string `json:"thread_key"`
	UserID    string `json:"user_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		http.Error(w, `{"error":"chat not configured"}`, http.StatusServiceUnavailable)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Message == "" || req.ThreadKey == "" {
		http.Error(w, `{"error":"message and thread_key are required"}`, http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		req.UserID = "default"
	}

	res, err := s.chat(r.Context(), &types.InboundMessage{
		Source:    "api",
		ThreadKey: types.ThreadKey(req.ThreadKey),
		UserID:    req.UserID,
		Text:      req.Message,
	})
	if err != nil {
		slog.Error("chat turn failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"answer":     res.Answer,
		"capability": res.Capability,
		"thread_id":  string(res.ThreadID),
	})
}

// adHocRequest is the JSON body for POST /webhook.
type adHocRequest struct {
	Prompt    string `json:"prompt"`
	ThreadKey string `json:"thread_key"`
}

func (s *Server) handleAdHoc(w http.ResponseWriter, r *http.Request) {
	var req adHocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	if req.Prompt == "" || req.ThreadKey == "" {
		http.Error(w, `{"error":"prompt and thread_key are required"}`, http.StatusBadRequest)
		return
	}

	resp, err := s.handler(req.ThreadKey, req.Prompt)
	if err != nil {
		slog.Error("webhook ad-hoc handler failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"response": resp})
}

// namedTaskRequest is the optional JSON body for POST /webhook/{name}.
type namedTaskRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleNamedTask(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/webhook/")
	if name == "" {
		http.Error(w, `{"error":"task name required"}`, http.StatusBadRequest)
		return
	}

	task, err := s.tasks.Get(name)
	if err != nil {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}

	if !task.Enabled {
		http.Error(w, `{"error":"task is disabled"}`, http.StatusForbidden)
		return
	}

	prompt := task.Prompt
	threadKey := task.ThreadKey

	// Allow body to override the prompt
	var body namedTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Prompt != "" {
		prompt = body.Prompt
	}

	resp, err := s.handler(threadKey, prompt)
	if err != nil {
		slog.Error("webhook named task handler failed", "task", name, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"response": resp})
}

type threadResponse struct {
	ThreadID      string `json:"thread_id"`
	ThreadKey     string `json:"thread_key"`
	Title         string `json:"title,omitempty"`
	Status        string `json:"status"`
	MessageCount  int64  `json:"message_count"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
	LastMessageAt string `json:"last_message_at,omitempty"`
}

func (s *Server) handleAPIThreads(w http.ResponseWriter, r *http.Request) {
	if s.threads == nil {
		http.Error(w, `{"error":"thread API not configured"}`, http.StatusServiceUnavailable)
		return
	}
	threads, err := s.threads.List(r.Context())
	if err != nil {
		slog.Error("list threads failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]threadResponse, 0, len(threads))
	for _, th := range threads {
		resp := threadResponse{
			ThreadID:     string(th.ThreadID),
			ThreadKey:    string(th.ThreadKey),
			Title:        th.Title,
			Status:       th.Status,
			MessageCount: th.MessageCount,
			CreatedAt:    th.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt:    th.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if !th.LastMessageAt.IsZero() {
			resp.LastMessageAt = th.LastMessageAt.Format("2006-01-02T15:04:05Z07:00")
		}
		result = append(result, resp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt > result[j].UpdatedAt
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleAPIThreadMessages(w http.ResponseWriter, r *http.Request) {
	if s.messages == nil {
		http.Error(w, `{"error":"thread API not configured"}`, http.StatusServiceUnavailable)
		return
	}

	// Path: /api/threads/{id}/messages
	path := strings.TrimPrefix(r.URL.Path, "/api/threads/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 || parts[1] != "messages" {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	threadID := types.ThreadID(parts[0])

	limit := 200
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := s.messages.History(r.Context(), threadID, limit)
	if err != nil {
		slog.Error("thread history failed", "thread_id", threadID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*types.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

func (s *Server) handleAPIThreadDelete(w http.ResponseWriter, r *http.Request) {
	if s.threads == nil {
		http.Error(w, `{"error":"thread API not configured"}`, http.StatusServiceUnavailable)
		return
	}

	threadID := types.ThreadID(strings.TrimPrefix(r.URL.Path, "/api/threads/"))
	if threadID == "" || strings.Contains(string(threadID), "/") {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	removed, err := s.threads.SoftDelete(r.Context(), threadID)
	if err != nil {
		slog.Error("soft delete thread failed", "thread_id", threadID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"thread_id": string(threadID),
		"deleted":   removed,
	})
}
