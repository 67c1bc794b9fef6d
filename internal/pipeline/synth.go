package pipeline

import (
	"context"
	"log/slog"

	"github.com/vocata-labs/vocata-core/internal/config"
	"github.com/vocata-labs/vocata-core/internal/protocol"
	"github.com/vocata-labs/vocata-core/internal/session"
	"github.com/vocata-labs/vocata-core/internal/tts"
)

// SynthesisStage turns speakable sentences into audio packets on the
// session's outbound queue. Staleness is checked both before and after the
// blocking synthesis call; a stale sentence empties the whole queue since
// everything behind it carries the same dead token or older.
type SynthesisStage struct {
	synth    tts.Synthesizer
	registry *session.Registry
	guard    *session.Guard
	queues   *QueueRegistry
	audio    *AudioBus
	cfg      config.TTSConfig
	metrics  *Metrics
	log      *slog.Logger
}

func NewSynthesisStage(
	synth tts.Synthesizer,
	registry *session.Registry,
	guard *session.Guard,
	queues *QueueRegistry,
	audio *AudioBus,
	cfg config.TTSConfig,
	metrics *Metrics,
	log *slog.Logger,
) *SynthesisStage {
	return &SynthesisStage{
		synth:    synth,
		registry: registry,
		guard:    guard,
		queues:   queues,
		audio:    audio,
		cfg:      cfg,
		metrics:  metrics,
		log:      log.With(slog.String("component", "synthesis")),
	}
}

// Run consumes the session's sentence queue until the context is cancelled.
func (s *SynthesisStage) Run(ctx context.Context, sessionID string) error {
	set := s.queues.Get(sessionID)
	out := s.audio.Queue(sessionID)
	log := s.log.With(slog.String("session_id", sessionID))

	for {
		item, err := set.Sentences.Get(ctx)
		if err != nil {
			return err
		}
		if item.Text == "" {
			log.Warn("empty sentence received, skipping")
			continue
		}

		if !s.guard.IsActive(sessionID, item.Token) {
			dropped := set.Sentences.Drain() + 1
			log.Warn("token superseded, draining sentence queue",
				slog.String("sentence", clip(item.Text)),
				slog.Int("dropped", dropped))
			s.metrics.addStaleDrops(ctx, dropped)
			continue
		}

		audio, err := s.synth.Synthesize(ctx, tts.Request{
			Text:       item.Text,
			Voice:      s.cfg.Voice,
			Language:   s.registry.Language(sessionID),
			SampleRate: s.cfg.SampleRate,
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil || len(audio) == 0 {
			if err != nil {
				log.Error("synthesis failed",
					slog.String("sentence", clip(item.Text)),
					slog.String("error", err.Error()))
			} else {
				log.Error("synthesis returned no audio", slog.String("sentence", clip(item.Text)))
			}
			s.metrics.addSynthFailure(ctx)
			continue
		}

		if !s.guard.IsActive(sessionID, item.Token) {
			log.Warn("token superseded after synthesis, discarding audio",
				slog.String("sentence", clip(item.Text)))
			s.metrics.addStaleDrops(ctx, 1)
			continue
		}

		log.Info("audio packet queued",
			slog.String("sentence", clip(item.Text)),
			slog.Int("bytes", len(audio)))
		out.Put(protocol.AudioPacket{
			Type:       protocol.PacketAudio,
			SessionID:  sessionID,
			Sentence:   item.Text,
			SampleRate: s.cfg.SampleRate,
			Tag:        "NEU",
			Audio:      audio,
		})
	}
}
