package tts

import (
	"context"
	"time"
)

// MockSynth returns a small silent PCM buffer after a short delay, with
// optional forced failure for error-path tests.
type MockSynth struct {
	Delay time.Duration
	Err   error
}

func NewMockSynth() *MockSynth {
	return &MockSynth{Delay: 10 * time.Millisecond}
}

func (m *MockSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	// 20ms of silence at the requested rate.
	n := 2 * req.SampleRate / 50
	if n <= 0 {
		n = 640
	}
	return make([]byte, n), nil
}
