package dispatch

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/user/concierge/pkg/llm"
)

// Operation defines the interface for an executable operation.
type Operation interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds registered operations and provides lookup.
type Registry struct {
	ops map[string]Operation
}

// NewRegistry creates an empty operation registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

// Register adds an operation to the registry.
func (r *Registry) Register(op Operation) {
	r.ops[op.Name()] = op
}

// Get returns an operation by name.
func (r *Registry) Get(name string) (Operation, bool) {
	op, ok := r.ops[name]
	return op, ok
}

// All returns all registered operations, sorted by name.
func (r *Registry) All() []Operation {
	out := make([]Operation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the sorted names of all registered operations.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AsOracleTools converts registered operations to the LLM provider format.
func (r *Registry) AsOracleTools() []llm.Tool {
	all := r.All()
	out := make([]llm.Tool, 0, len(all))
	for _, op := range all {
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        op.Name(),
				Description: op.Description(),
				Parameters:  op.Parameters(),
			},
		})
	}
	return out
}
