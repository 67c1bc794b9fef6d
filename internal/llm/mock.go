package llm

import (
	"context"
	"strings"
	"sync"
)

// MockGenerator streams a fixed set of fragments per call, or a canned echo
// when no script is set. It remembers the last request it served so tests
// can inspect the prompt that reached it.
type MockGenerator struct {
	Fragments  []string
	Completion string

	mu   sync.Mutex
	last Request
}

func NewMockGenerator(fragments ...string) *MockGenerator {
	return &MockGenerator{Fragments: fragments}
}

func (m *MockGenerator) Generate(ctx context.Context, req Request, consumer func(Fragment) error) error {
	m.mu.Lock()
	m.last = req
	m.mu.Unlock()
	fragments := m.Fragments
	if len(fragments) == 0 {
		fragments = []string{"[mock reply to " + strings.TrimSpace(req.Prompt) + "]"}
	}
	for _, content := range fragments {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := consumer(Fragment{SessionID: req.SessionID, Content: content}); err != nil {
			return err
		}
	}
	return consumer(Fragment{SessionID: req.SessionID, Done: true})
}

func (m *MockGenerator) Complete(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.last = req
	m.mu.Unlock()
	if m.Completion != "" {
		return m.Completion, nil
	}
	return "[mock completion]", nil
}

// LastRequest returns the most recent request handled by either call.
func (m *MockGenerator) LastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
