package dispatch

import (
	"context"
	"encoding/json"
	"testing"
)

type echoOp struct{}

func (echoOp) Name() string                { return "echo" }
func (echoOp) Description() string         { return "Echoes its arguments" }
func (echoOp) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (echoOp) Execute(_ context.Context, args json.RawMessage) (string, error) {
	return string(args), nil
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(echoOp{})
	registry.Register(conflictOp{})

	op, ok := registry.Get("echo")
	if !ok {
		t.Fatal("expected to find echo")
	}
	if op.Name() != "echo" {
		t.Errorf("got %q", op.Name())
	}

	if _, ok := registry.Get("missing"); ok {
		t.Error("expected miss for unregistered operation")
	}

	names := registry.Names()
	if len(names) != 2 || names[0] != "check_conflicts" || names[1] != "echo" {
		t.Errorf("names = %v", names)
	}
}

func TestRegistryAsOracleTools(t *testing.T) {
	registry := NewRegistry()
	registry.Register(echoOp{})
	registry.Register(conflictOp{})

	tools := registry.AsOracleTools()
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	// Sorted by name for a stable prompt.
	if tools[0].Function.Name != "check_conflicts" || tools[1].Function.Name != "echo" {
		t.Errorf("tools out of order: %s, %s", tools[0].Function.Name, tools[1].Function.Name)
	}
	for _, tool := range tools {
		if tool.Type != "function" {
			t.Errorf("tool type = %q", tool.Type)
		}
		if tool.Function.Description == "" || tool.Function.Parameters == nil {
			t.Errorf("incomplete tool %s", tool.Function.Name)
		}
	}
}
