package asr

import (
	"context"
	"errors"
)

// TranscriptEvent is one recognition result, interim or final.
type TranscriptEvent struct {
	Text       string
	Final      bool
	Confidence float64
}

// StreamConfig describes the audio a recognition stream will receive.
type StreamConfig struct {
	SessionID       string
	Language        string
	SampleRate      int
	FrameDurationMS int
}

// RecognitionStream is one live utterance stream: the caller feeds PCM frames
// and consumes transcript events until io.EOF.
type RecognitionStream interface {
	// Send feeds one frame of 16-bit mono PCM.
	Send(frame []byte) error
	// CloseSend signals end of input; pending events are still delivered.
	CloseSend() error
	// Recv blocks for the next transcript event. Returns io.EOF after the
	// last event of a closed stream, or ErrIdleTimeout when the backend
	// gave up waiting for audio.
	Recv(ctx context.Context) (TranscriptEvent, error)
}

// StreamingRecognizer opens live recognition streams.
type StreamingRecognizer interface {
	OpenStream(ctx context.Context, cfg StreamConfig) (RecognitionStream, error)
}

// Recognizer is the batch contract behind the chunked streaming adapter.
type Recognizer interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, final bool) (TranscriptEvent, error)
}

// ErrIdleTimeout marks the backend's expected give-up when audio pauses for
// too long. Callers treat it as a clean end of stream.
var ErrIdleTimeout = errors.New("asr: stream idle timeout")
