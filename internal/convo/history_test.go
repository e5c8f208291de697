package convo

import (
	"fmt"
	"sync"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"go.uber.org/goleak"
)

func TestHistory_AppendAndMessages(t *testing.T) {
	h := NewHistory()

	h.Append(1, ai.NewUserMessage(ai.NewTextPart("hello")))
	h.Append(1, ai.NewModelMessage(ai.NewTextPart("hi")))

	msgs := h.Messages(1)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != ai.RoleUser || msgs[0].Text() != "hello" {
		t.Errorf("first message = %s %q", msgs[0].Role, msgs[0].Text())
	}
	if msgs[1].Role != ai.RoleModel || msgs[1].Text() != "hi" {
		t.Errorf("second message = %s %q", msgs[1].Role, msgs[1].Text())
	}
	if h.Len(1) != 2 {
		t.Errorf("Len(1) = %d, want 2", h.Len(1))
	}
}

func TestHistory_UnknownThreadIsEmpty(t *testing.T) {
	h := NewHistory()
	if msgs := h.Messages(42); msgs != nil {
		t.Errorf("expected nil for unknown thread, got %d messages", len(msgs))
	}
	if h.Len(42) != 0 {
		t.Errorf("Len(42) = %d, want 0", h.Len(42))
	}
}

func TestHistory_ThreadsAreIndependent(t *testing.T) {
	h := NewHistory()
	h.Append(1, ai.NewUserMessage(ai.NewTextPart("thread one")))
	h.Append(2, ai.NewUserMessage(ai.NewTextPart("thread two")))

	if h.Len(1) != 1 || h.Len(2) != 1 {
		t.Fatalf("Len(1)=%d Len(2)=%d, want 1 and 1", h.Len(1), h.Len(2))
	}
	if got := h.Messages(2)[0].Text(); got != "thread two" {
		t.Errorf("thread 2 message = %q", got)
	}
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory()
	h.Append(1, ai.NewUserMessage(ai.NewTextPart("x")))
	h.Clear(1)
	if h.Len(1) != 0 {
		t.Errorf("Len after Clear = %d, want 0", h.Len(1))
	}
}

func TestHistory_MessagesReturnsCopies(t *testing.T) {
	h := NewHistory()
	h.Append(1, ai.NewUserMessage(ai.NewTextPart("original")))

	msgs := h.Messages(1)
	msgs[0].Content[0].Text = "mutated"
	msgs[0].Content = nil

	again := h.Messages(1)
	if again[0].Text() != "original" {
		t.Errorf("stored message was mutated through the returned copy: %q", again[0].Text())
	}
}

func TestHistory_ConcurrentAppends(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHistory()
	const (
		threads    = 8
		perThread  = 50
		goroutines = 4
	)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for tid := int64(0); tid < threads; tid++ {
				for i := 0; i < perThread; i++ {
					h.Append(tid, ai.NewUserMessage(ai.NewTextPart(fmt.Sprintf("g%d-m%d", g, i))))
					_ = h.Messages(tid)
				}
			}
		}(g)
	}
	wg.Wait()

	for tid := int64(0); tid < threads; tid++ {
		if got := h.Len(tid); got != goroutines*perThread {
			t.Errorf("thread %d has %d messages, want %d", tid, got, goroutines*perThread)
		}
	}
}
