package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vocata-labs/vocata-core/internal/asr"
	"github.com/vocata-labs/vocata-core/internal/config"
	"github.com/vocata-labs/vocata-core/internal/protocol"
	"github.com/vocata-labs/vocata-core/internal/session"
)

// TranscriptNotifier receives interim and final transcript events so a
// transport can relay them to the client. May be nil.
type TranscriptNotifier func(sessionID string, event asr.TranscriptEvent)

// TranscriptionStage drives one live recognition stream per audio
// connection. It feeds PCM frames into the recognizer and turns transcript
// events into barge-in signals and finalized recognitions.
type TranscriptionStage struct {
	recognizer asr.StreamingRecognizer
	registry   *session.Registry
	guard      *session.Guard
	queues     *QueueRegistry
	audio      *AudioBus
	cfg        config.ASRConfig
	notify     TranscriptNotifier
	recorder   Recorder
	metrics    *Metrics
	log        *slog.Logger
}

func NewTranscriptionStage(
	recognizer asr.StreamingRecognizer,
	registry *session.Registry,
	guard *session.Guard,
	queues *QueueRegistry,
	audio *AudioBus,
	cfg config.ASRConfig,
	notify TranscriptNotifier,
	recorder Recorder,
	metrics *Metrics,
	log *slog.Logger,
) *TranscriptionStage {
	return &TranscriptionStage{
		recognizer: recognizer,
		registry:   registry,
		guard:      guard,
		queues:     queues,
		audio:      audio,
		cfg:        cfg,
		notify:     notify,
		recorder:   recorder,
		metrics:    metrics,
		log:        log.With(slog.String("component", "transcription")),
	}
}

// Run consumes the session's inbound frame queue until the stream ends or
// the context is cancelled. It returns nil on a clean end of stream,
// including the recognizer's idle timeout.
func (s *TranscriptionStage) Run(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.recognizer.OpenStream(ctx, asr.StreamConfig{
		SessionID:       sessionID,
		Language:        s.cfg.Language,
		SampleRate:      s.cfg.SampleRate,
		FrameDurationMS: s.cfg.FrameDurationMS,
	})
	if err != nil {
		return err
	}

	go s.feed(ctx, sessionID, stream)

	log := s.log.With(slog.String("session_id", sessionID))

	var (
		lastInterim string
		token       session.Token
	)
	for {
		event, err := stream.Recv(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return nil
			case errors.Is(err, asr.ErrIdleTimeout):
				log.Debug("recognition stream idle timeout")
				return nil
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				log.Warn("recognition stream error", slog.String("error", err.Error()))
				return err
			}
		}

		text := strings.TrimSpace(event.Text)
		if text == "" {
			continue
		}

		if event.Final {
			// Finals without a preceding changed interim never minted a
			// token and are dropped, matching the interim-driven barge-in
			// contract.
			if token != "" {
				log.Info("utterance finalized", slog.String("text", text))
				s.queues.Get(sessionID).Recognitions.Put(Recognition{
					Text:      text,
					Token:     token,
					SessionID: sessionID,
					Timestamp: time.Now(),
				})
				s.guard.SetActive(sessionID, token)
				s.registry.AppendHistory(sessionID, text)
				s.metrics.addUtterance(ctx)
				if s.recorder != nil {
					if err := s.recorder.RecordUtterance(ctx, sessionID, string(token), text); err != nil {
						log.Warn("utterance record failed", slog.String("error", err.Error()))
					}
				}
				if s.notify != nil {
					s.notify(sessionID, event)
				}
			}
			lastInterim = ""
			token = ""
			continue
		}

		if text == lastInterim {
			continue
		}
		lastInterim = text
		if token == "" {
			token = session.NewToken(sessionID)
			s.audio.Queue(sessionID).Put(protocol.Stop(sessionID))
			s.metrics.addBargeIn(ctx)
			if s.recorder != nil {
				if err := s.recorder.RecordBargeIn(ctx, sessionID, string(token)); err != nil {
					log.Warn("barge-in record failed", slog.String("error", err.Error()))
				}
			}
			log.Debug("barge-in detected", slog.String("token", string(token)))
		}
		s.registry.SetLanguage(sessionID, sessionLanguage(s.cfg.Language))
		if s.notify != nil {
			s.notify(sessionID, event)
		}
	}
}

func (s *TranscriptionStage) feed(ctx context.Context, sessionID string, stream asr.RecognitionStream) {
	frames := s.queues.Get(sessionID).Frames
	defer func() { _ = stream.CloseSend() }()

	for {
		frame, err := frames.Get(ctx)
		if err != nil {
			return
		}
		if len(frame.PCM) > 0 {
			if err := stream.Send(frame.PCM); err != nil {
				s.log.Warn("frame send failed",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()))
				return
			}
		}
		if frame.Final {
			return
		}
	}
}

// sessionLanguage maps a recognizer language code onto the coarse reply
// language the prompt builder understands.
func sessionLanguage(code string) string {
	lower := strings.ToLower(code)
	if strings.HasPrefix(lower, "zh") || strings.HasPrefix(lower, "cmn") || strings.HasPrefix(lower, "yue") {
		return "CHN"
	}
	return "ENG"
}
