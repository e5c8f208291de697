package convo

import (
	"sync"

	"github.com/firebase/genkit/go/ai"
)

// History holds conversation messages per thread, in memory.
// All methods are safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	threads map[int64][]*ai.Message
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{threads: make(map[int64][]*ai.Message)}
}

// Append adds messages to the thread's history in order.
func (h *History) Append(threadID int64, msgs ...*ai.Message) {
	if len(msgs) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.threads[threadID] = append(h.threads[threadID], msgs...)
}

// Messages returns a deep copy of the thread's history.
// Copying matters: Genkit's renderMessages() mutates msg.Content in-place,
// so handing out stored pointers would race across concurrent turns.
func (h *History) Messages(threadID int64) []*ai.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return copyMessages(h.threads[threadID])
}

// Len reports the number of messages stored for the thread.
func (h *History) Len(threadID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.threads[threadID])
}

// Clear removes the thread's history.
func (h *History) Clear(threadID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.threads, threadID)
}

func copyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = copyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: copyMap(msg.Metadata),
		}
	}
	return copied
}

// copyPart copies a Part one level deep. ToolRequest.Input and
// ToolResponse.Output stay shared; Genkit only mutates the Content slice.
func copyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      copyMap(p.Custom),
		Metadata:    copyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
			Input: p.ToolRequest.Input,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Ref:    p.ToolResponse.Ref,
			Output: p.ToolResponse.Output,
		}
	}
	if p.Resource != nil {
		cp.Resource = &ai.ResourcePart{Uri: p.Resource.Uri}
	}
	return cp
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
