package asr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// chunkedRecognizer adapts a batch Recognizer into the streaming contract:
// interim results are produced from the accumulated buffer at a fixed audio
// interval, the final result when the caller closes the send side.
type chunkedRecognizer struct {
	rec            Recognizer
	partialEveryMS int
	log            *slog.Logger
}

func NewChunkedRecognizer(rec Recognizer, partialEveryMS int, log *slog.Logger) StreamingRecognizer {
	return &chunkedRecognizer{rec: rec, partialEveryMS: partialEveryMS, log: log}
}

func (c *chunkedRecognizer) OpenStream(ctx context.Context, cfg StreamConfig) (RecognitionStream, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", cfg.SampleRate)
	}
	partialBytes := 0
	if c.partialEveryMS > 0 {
		partialBytes = 2 * cfg.SampleRate * c.partialEveryMS / 1000
	}
	return &chunkedStream{
		rec:          c.rec,
		ctx:          ctx,
		cfg:          cfg,
		partialBytes: partialBytes,
		events:       make(chan streamResult, 16),
		log:          c.log,
	}, nil
}

type streamResult struct {
	event TranscriptEvent
	err   error
}

type chunkedStream struct {
	rec          Recognizer
	ctx          context.Context
	cfg          StreamConfig
	partialBytes int
	log          *slog.Logger

	mu           sync.Mutex
	buf          []byte
	sincePartial int
	inflight     bool
	closed       bool
	wg           sync.WaitGroup

	events chan streamResult
}

func (s *chunkedStream) Send(frame []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("send on closed recognition stream")
	}
	s.buf = append(s.buf, frame...)
	s.sincePartial += len(frame)
	schedule := s.partialBytes > 0 && s.sincePartial >= s.partialBytes && !s.inflight
	var pcm []byte
	if schedule {
		s.sincePartial = 0
		s.inflight = true
		pcm = append([]byte(nil), s.buf...)
	}
	s.mu.Unlock()

	if schedule {
		s.wg.Add(1)
		go s.transcribePartial(pcm)
	}
	return nil
}

func (s *chunkedStream) transcribePartial(pcm []byte) {
	defer s.wg.Done()
	event, err := s.rec.Transcribe(s.ctx, pcm, s.cfg.SampleRate, false)

	s.mu.Lock()
	s.inflight = false
	s.mu.Unlock()

	if err != nil {
		// Interim failures are expected noise; the final pass decides.
		s.log.Debug("interim transcription failed", slog.String("error", err.Error()))
		return
	}
	event.Final = false
	select {
	case s.events <- streamResult{event: event}:
	default:
		// Consumer is behind; dropping an interim is harmless.
	}
}

func (s *chunkedStream) CloseSend() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pcm := append([]byte(nil), s.buf...)
	s.mu.Unlock()

	go func() {
		s.wg.Wait()
		if len(pcm) > 0 {
			event, err := s.rec.Transcribe(s.ctx, pcm, s.cfg.SampleRate, true)
			if err != nil {
				s.events <- streamResult{err: err}
			} else {
				event.Final = true
				s.events <- streamResult{event: event}
			}
		}
		close(s.events)
	}()
	return nil
}

func (s *chunkedStream) Recv(ctx context.Context) (TranscriptEvent, error) {
	select {
	case <-ctx.Done():
		return TranscriptEvent{}, ctx.Err()
	case res, ok := <-s.events:
		if !ok {
			return TranscriptEvent{}, io.EOF
		}
		return res.event, res.err
	}
}
