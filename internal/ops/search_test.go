package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebSearchOp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("q") != "lich am hom nay" {
			t.Errorf("query = %q", r.URL.Query().Get("q"))
		}
		json.NewEncoder(w).Encode(braveResponse{
			Web: braveWeb{Results: []braveResult{
				{Title: "Lich van nien", URL: "https://example.com", Description: "Am lich hom nay"},
			}},
		})
	}))
	defer server.Close()

	op := NewWebSearch("test-key")
	op.baseURL = server.URL

	result, err := op.Execute(context.Background(), json.RawMessage(`{"query": "lich am hom nay"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result, "Lich van nien") || !strings.Contains(result, "https://example.com") {
		t.Errorf("unexpected result: %q", result)
	}
}

func TestWebSearchOpEmptyQuery(t *testing.T) {
	op := NewWebSearch("test-key")
	if _, err := op.Execute(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Error("accepted an empty query")
	}
}
