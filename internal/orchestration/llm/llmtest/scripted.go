// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"sync"
	"time"

	"campaign-writer/internal/common/errors"
	"campaign-writer/internal/orchestration/llm"
)

// Reply is one scripted outcome.
type Reply struct {
	Text       string
	Confidence *float64
	Err        error
	Delay      time.Duration
}

// Scripted returns replies in order and repeats the last one once exhausted.
type Scripted struct {
	mu      sync.Mutex
	name    string
	replies []Reply
	calls   []llm.Invocation
}

func New(replies ...Reply) *Scripted {
	return &Scripted{name: "scripted", replies: replies}
}

// Text is shorthand for a scripted client that always answers text.
func Text(text string) *Scripted {
	return New(Reply{Text: text})
}

func (s *Scripted) Provider() string { return s.name }

func (s *Scripted) Invoke(ctx context.Context, inv llm.Invocation) (*llm.Completion, error) {
	s.mu.Lock()
	idx := len(s.calls)
	s.calls = append(s.calls, inv)
	var reply Reply
	if len(s.replies) > 0 {
		if idx >= len(s.replies) {
			idx = len(s.replies) - 1
		}
		reply = s.replies[idx]
	}
	s.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-ctx.Done():
			return nil, errors.NewProviderTimeoutError(inv.Model, ctx.Err())
		}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &llm.Completion{Text: reply.Text, Model: inv.Model, Confidence: reply.Confidence}, nil
}

// Calls returns a copy of every invocation received.
func (s *Scripted) Calls() []llm.Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Invocation(nil), s.calls...)
}

func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Float is a helper for Reply.Confidence.
func Float(f float64) *float64 { return &f }
