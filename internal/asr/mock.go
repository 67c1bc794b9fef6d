package asr

import (
	"context"
	"io"
	"sync"
)

// MockRecognizer replays a scripted sequence of transcript events, ignoring
// the audio it is fed. Useful for pipeline tests.
type MockRecognizer struct {
	Script []TranscriptEvent
}

func NewMockRecognizer(script ...TranscriptEvent) *MockRecognizer {
	return &MockRecognizer{Script: script}
}

func (m *MockRecognizer) OpenStream(_ context.Context, _ StreamConfig) (RecognitionStream, error) {
	return &mockStream{script: append([]TranscriptEvent(nil), m.Script...)}, nil
}

type mockStream struct {
	mu     sync.Mutex
	script []TranscriptEvent
	next   int
	frames int
}

func (s *mockStream) Send(frame []byte) error {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
	return nil
}

func (s *mockStream) CloseSend() error { return nil }

func (s *mockStream) Recv(ctx context.Context) (TranscriptEvent, error) {
	select {
	case <-ctx.Done():
		return TranscriptEvent{}, ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.script) {
		return TranscriptEvent{}, io.EOF
	}
	event := s.script[s.next]
	s.next++
	return event, nil
}
