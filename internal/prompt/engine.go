// internal/prompt/engine.go
package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/concierge/internal/types"
	"github.com/user/concierge/pkg/llm"
)

// Engine assembles token-budgeted prompts for the decision oracle.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
	tmpl      *template.Template
	maxTokens int
	reserve   int
	loc       *time.Location
}

// PromptData is the template context for the system prompt.
type PromptData struct {
	Time     string
	Timezone string
	ThreadID string
	Ops      string
}

// New creates a prompt engine with the specified token budget.
// model selects the tokenizer (e.g. "gpt-4o"); maxTokens is the model's
// context window; reserve is held back for the model's response. loc is
// the reference timezone rendered into the system prompt.
func New(model string, maxTokens, reserve int, loc *time.Location) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	tmpl, err := template.New("system").Parse(DefaultPrompt)
	if err != nil {
		return nil, fmt.Errorf("parse system prompt: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		tokenizer: enc,
		tmpl:      tmpl,
		maxTokens: maxTokens,
		reserve:   reserve,
		loc:       loc,
	}, nil
}

// SetTemplate replaces the system prompt template, used when a custom
// prompt file is configured.
func (e *Engine) SetTemplate(text string) error {
	tmpl, err := template.New("system").Parse(text)
	if err != nil {
		return fmt.Errorf("parse system prompt: %w", err)
	}
	e.tmpl = tmpl
	return nil
}

// countTokens returns the token count for a string.
func (e *Engine) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

// Build assembles a token-budgeted prompt from thread history. When the
// history exceeds the budget the newest messages are kept and older
// ones dropped.
func (e *Engine) Build(
	_ context.Context,
	thread *types.ThreadIndex,
	history []*types.Message,
	opNames []string,
) ([]llm.Message, error) {
	sysPrompt, err := e.systemPrompt(thread, opNames)
	if err != nil {
		return nil, err
	}

	inputBudget := e.maxTokens - e.reserve
	remaining := inputBudget - e.countTokens(sysPrompt)
	historyBudget := int(float64(remaining) * 0.8)

	// Walk backwards so the newest messages survive truncation.
	var kept []llm.Message
	usedTokens := 0
	for i := len(history) - 1; i >= 0; i-- {
		msg, err := toOracleMessage(history[i])
		if err != nil {
			continue
		}

		msgTokens := e.countTokens(msg.Content)
		for _, tc := range msg.ToolCalls {
			msgTokens += e.countTokens(tc.Function.Name)
			msgTokens += e.countTokens(string(tc.Function.Arguments))
		}

		if usedTokens+msgTokens > historyBudget {
			break
		}
		kept = append(kept, msg)
		usedTokens += msgTokens
	}

	// Restore chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	kept = trimOrphanedResults(kept)

	messages := make([]llm.Message, 0, 1+len(kept))
	messages = append(messages, llm.Message{Role: "system", Content: sysPrompt})
	messages = append(messages, kept...)
	return messages, nil
}

func (e *Engine) systemPrompt(thread *types.ThreadIndex, opNames []string) (string, error) {
	var sb strings.Builder
	err := e.tmpl.Execute(&sb, PromptData{
		Time:     time.Now().In(e.loc).Format(time.RFC3339),
		Timezone: e.loc.String(),
		ThreadID: string(thread.ThreadID),
		Ops:      strings.Join(opNames, ", "),
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return sb.String(), nil
}

// trimOrphanedResults drops leading tool-role messages left behind when
// truncation cuts a directive away from its results. The OpenAI wire
// format rejects tool messages with no preceding tool_calls.
func trimOrphanedResults(messages []llm.Message) []llm.Message {
	for len(messages) > 0 && messages[0].Role == "tool" {
		messages = messages[1:]
	}
	return messages
}

// toOracleMessage converts a stored thread message into the oracle wire
// format. Directive messages become assistant tool_calls; result
// messages become tool-role entries carrying their call id.
func toOracleMessage(msg *types.Message) (llm.Message, error) {
	switch msg.Kind {
	case types.KindUserMessage:
		return llm.Message{Role: "user", Content: msg.Content}, nil

	case types.KindAssistantMessage:
		return llm.Message{Role: "assistant", Content: msg.Content}, nil

	case types.KindOperationCall:
		var calls []types.OperationCall
		if err := json.Unmarshal(msg.Payload, &calls); err != nil {
			return llm.Message{}, fmt.Errorf("unmarshal directive: %w", err)
		}
		toolCalls := make([]llm.ToolCall, len(calls))
		for i, call := range calls {
			toolCalls[i] = llm.ToolCall{
				ID:   call.CallID,
				Type: "function",
				Function: llm.FunctionCall{
					Name:      call.Op,
					Arguments: call.Arguments,
				},
			}
		}
		return llm.Message{Role: "assistant", ToolCalls: toolCalls}, nil

	case types.KindOperationResult:
		var res types.OperationResult
		if err := json.Unmarshal(msg.Payload, &res); err != nil {
			return llm.Message{}, fmt.Errorf("unmarshal result: %w", err)
		}
		content := res.Result
		if res.Status == types.ResultError {
			content = "error: " + res.Error
		}
		return llm.Message{Role: "tool", Content: content, ToolCallID: res.CallID}, nil

	default:
		return llm.Message{}, fmt.Errorf("unknown message kind: %s", msg.Kind)
	}
}
