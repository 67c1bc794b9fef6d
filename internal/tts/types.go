package tts

import "context"

// Request contains parameters to synthesize one sentence.
type Request struct {
	Text       string
	Voice      string
	Language   string
	SampleRate int
}

// Synthesizer is the speech-synthesis collaborator: one sentence in, one
// buffer of 16-bit linear PCM out. The call blocks for the duration of the
// synthesis.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
