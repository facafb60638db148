package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadURLOp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>Lịch tuần này</h1><p>Some <b>bold</b> text.</p></body></html>`))
	}))
	defer server.Close()

	op := NewReadURL()
	result, err := op.Execute(context.Background(), json.RawMessage(`{"url": "`+server.URL+`"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result, "Lịch tuần này") {
		t.Errorf("markdown missing heading text: %q", result)
	}
	if !strings.Contains(result, "**bold**") {
		t.Errorf("markdown missing bold conversion: %q", result)
	}
}

func TestReadURLOpErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	op := NewReadURL()
	if _, err := op.Execute(context.Background(), json.RawMessage(`{"url": "`+server.URL+`"}`)); err == nil {
		t.Error("404 did not fail")
	}
	if _, err := op.Execute(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Error("missing url did not fail")
	}
}
