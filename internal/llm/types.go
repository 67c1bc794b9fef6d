package llm

import "context"

// Request describes one generation call.
type Request struct {
	SessionID   string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Fragment is one streamed piece of model output.
type Fragment struct {
	SessionID string
	Content   string
	Done      bool
}

// Generator is the text-generation collaborator. Generate streams fragments
// through the consumer until the model finishes or the consumer returns an
// error; Complete is the non-streaming variant used by background
// summarization.
type Generator interface {
	Generate(ctx context.Context, req Request, consumer func(Fragment) error) error
	Complete(ctx context.Context, req Request) (string, error)
}
