package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// ModelName is the provider-qualified name the scripted model registers under.
const ModelName = "mock/chat-model"

// ScriptedModel is a deterministic Genkit model for tests. Each script rule
// matches a substring of the latest user message (case-insensitive, first
// match wins) and either answers with text or requests a tool call.
//
// Safe for concurrent use.
type ScriptedModel struct {
	mu       sync.Mutex
	rules    []scriptRule
	fallback string
	prompts  []string
	msgLens  []int
}

type scriptRule struct {
	pattern string
	text    string
	tool    *ai.ToolRequest
}

// NewScriptedModel creates a scripted model. The fallback text is returned
// when no rule matches the user message.
func NewScriptedModel(fallback string) *ScriptedModel {
	return &ScriptedModel{fallback: fallback}
}

// Answer scripts a plain text reply for user messages containing pattern.
func (m *ScriptedModel) Answer(pattern, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, scriptRule{pattern: strings.ToLower(pattern), text: text})
}

// CallTool scripts a tool request for user messages containing pattern.
// The input must be a JSON-compatible value matching the tool's input schema.
func (m *ScriptedModel) CallTool(pattern, toolName string, input any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, scriptRule{
		pattern: strings.ToLower(pattern),
		tool:    &ai.ToolRequest{Name: toolName, Input: input},
	})
}

// CallCount reports how many generate requests the model has served.
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns the latest user message of every generate request, in order.
func (m *ScriptedModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(m.prompts))
	copy(cp, m.prompts)
	return cp
}

// MessageCounts returns the number of messages in every generate request,
// in order. Useful for asserting how much history a caller carried in.
func (m *ScriptedModel) MessageCounts() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]int, len(m.msgLens))
	copy(cp, m.msgLens)
	return cp
}

// Register defines the scripted model on g under ModelName.
func (m *ScriptedModel) Register(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, ModelName, &ai.ModelOptions{
		Label: "Scripted Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
		},
	}, m.generate)
}

func (m *ScriptedModel) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	userText := latestUserText(req.Messages)

	m.mu.Lock()
	m.prompts = append(m.prompts, userText)
	m.msgLens = append(m.msgLens, len(req.Messages))
	var matched *scriptRule
	lower := strings.ToLower(userText)
	for i := range m.rules {
		if strings.Contains(lower, m.rules[i].pattern) {
			matched = &m.rules[i]
			break
		}
	}
	m.mu.Unlock()

	if matched != nil && matched.tool != nil {
		return &ai.ModelResponse{
			Request: req,
			Message: &ai.Message{
				Role: ai.RoleModel,
				Content: []*ai.Part{{
					Kind:        ai.PartToolRequest,
					ToolRequest: matched.tool,
				}},
			},
		}, nil
	}

	text := m.fallback
	if matched != nil {
		text = matched.text
	}

	if cb != nil {
		_ = cb(ctx, &ai.ModelResponseChunk{
			Content: []*ai.Part{ai.NewTextPart(text)},
		})
	}

	return &ai.ModelResponse{
		Request: req,
		Message: ai.NewModelMessage(ai.NewTextPart(text)),
	}, nil
}

// latestUserText walks messages back to front and returns the text of the
// most recent user message.
func latestUserText(messages []*ai.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == ai.RoleUser {
			return messages[i].Text()
		}
	}
	return ""
}
