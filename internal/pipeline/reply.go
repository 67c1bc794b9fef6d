package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/vocata-labs/vocata-core/internal/config"
	"github.com/vocata-labs/vocata-core/internal/llm"
	"github.com/vocata-labs/vocata-core/internal/persona"
	"github.com/vocata-labs/vocata-core/internal/prompt"
	"github.com/vocata-labs/vocata-core/internal/rag"
	"github.com/vocata-labs/vocata-core/internal/session"
)

// errStale aborts a generation stream whose token has been superseded.
var errStale = errors.New("generation token superseded")

const retrieveTimeout = 3 * time.Second

// ReplyStage turns finalized recognitions into speakable sentences. One
// instance runs per session; it owns the session's segmenter state and the
// summarization trigger.
type ReplyStage struct {
	generator  llm.Generator
	summarizer *Summarizer
	registry   *session.Registry
	guard      *session.Guard
	queues     *QueueRegistry
	personas   *persona.Store
	retriever  rag.Retriever
	recorder   Recorder
	llmCfg     config.LLMConfig
	sessCfg    config.SessionConfig
	ragCfg     config.RAGConfig
	metrics    *Metrics
	log        *slog.Logger
}

func NewReplyStage(
	generator llm.Generator,
	summarizer *Summarizer,
	registry *session.Registry,
	guard *session.Guard,
	queues *QueueRegistry,
	personas *persona.Store,
	retriever rag.Retriever,
	recorder Recorder,
	llmCfg config.LLMConfig,
	sessCfg config.SessionConfig,
	ragCfg config.RAGConfig,
	metrics *Metrics,
	log *slog.Logger,
) *ReplyStage {
	return &ReplyStage{
		generator:  generator,
		summarizer: summarizer,
		registry:   registry,
		guard:      guard,
		queues:     queues,
		personas:   personas,
		retriever:  retriever,
		recorder:   recorder,
		llmCfg:     llmCfg,
		sessCfg:    sessCfg,
		ragCfg:     ragCfg,
		metrics:    metrics,
		log:        log.With(slog.String("component", "reply")),
	}
}

// Run consumes the session's recognition queue until the context is
// cancelled.
func (s *ReplyStage) Run(ctx context.Context, sessionID string) error {
	set := s.queues.Get(sessionID)
	log := s.log.With(slog.String("session_id", sessionID))

	for {
		rec, err := set.Recognitions.Get(ctx)
		if err != nil {
			return err
		}
		s.handle(ctx, log, set, rec)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *ReplyStage) handle(ctx context.Context, log *slog.Logger, set *QueueSet, rec Recognition) {
	text := strings.TrimSpace(rec.Text)
	if text == "" {
		return
	}
	sessionID := rec.SessionID

	language := strings.ToUpper(s.registry.Language(sessionID))
	characterID := s.settingOr(sessionID, "character", s.sessCfg.DefaultCharacter)
	scriptID := s.settingOr(sessionID, "script", s.sessCfg.DefaultScript)

	topic := s.registry.Topic(sessionID, characterID)
	summary := s.registry.Summary(sessionID, characterID)
	entries := s.registry.Log(sessionID, characterID)
	s.registry.AppendLog(sessionID, characterID, session.LogEntry{Role: "user", Text: text})

	promptText := s.buildPrompt(ctx, log, sessionID, characterID, scriptID, text, language, topic, summary, entries)

	var full strings.Builder
	var seg Segmenter
	err := s.generator.Generate(ctx, llm.Request{
		SessionID:   sessionID,
		Prompt:      promptText,
		Model:       s.llmCfg.Model,
		MaxTokens:   s.llmCfg.MaxTokens,
		Temperature: s.llmCfg.Temperature,
	}, func(frag llm.Fragment) error {
		if frag.Done || frag.Content == "" {
			return nil
		}
		if !s.guard.IsActive(sessionID, rec.Token) {
			return errStale
		}
		s.guard.SetActive(sessionID, rec.Token)
		full.WriteString(frag.Content)
		for _, sentence := range seg.Push(frag.Content) {
			if !s.guard.IsActive(sessionID, rec.Token) {
				log.Warn("token superseded, dropping sentence", slog.String("sentence", clip(sentence)))
				s.metrics.addStaleDrops(ctx, 1)
				return errStale
			}
			log.Info("sentence queued for synthesis", slog.Int("chars", len(sentence)))
			set.Sentences.Put(Sentence{Text: sentence, Token: rec.Token, SessionID: sessionID})
			s.metrics.addSentence(ctx)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStale) && ctx.Err() == nil {
		log.Warn("reply generation failed", slog.String("error", err.Error()))
	}

	if tail := seg.Flush(); tail != "" && !errors.Is(err, errStale) && s.guard.IsActive(sessionID, rec.Token) {
		log.Info("tail sentence queued for synthesis", slog.Int("chars", len(tail)))
		set.Sentences.Put(Sentence{Text: tail, Token: rec.Token, SessionID: sessionID})
		s.metrics.addSentence(ctx)
	}

	if reply := strings.TrimSpace(full.String()); reply != "" {
		s.registry.AppendLog(sessionID, characterID, session.LogEntry{Role: "assistant", Text: reply})
		if s.recorder != nil {
			if err := s.recorder.RecordReply(ctx, sessionID, string(rec.Token), reply); err != nil {
				log.Warn("reply record failed", slog.String("error", err.Error()))
			}
		}
	}

	if s.summarizer != nil && len(s.registry.Log(sessionID, characterID)) > s.sessCfg.SummarizeThreshold {
		log.Debug("triggering background summarization", slog.String("character_id", characterID))
		go s.summarizer.Update(context.WithoutCancel(ctx), sessionID, characterID)
	}
}

func (s *ReplyStage) buildPrompt(
	ctx context.Context,
	log *slog.Logger,
	sessionID, characterID, scriptID, message, language, topic, summary string,
	entries []session.LogEntry,
) string {
	if s.personas == nil {
		return prompt.Fallback(message, language)
	}
	char := s.personas.Character(characterID)
	script := s.personas.Script(scriptID)

	var passages []rag.Passage
	if s.retriever != nil && strings.EqualFold(s.registry.Setting(sessionID, "rag_mode"), "true") {
		collection := char.RAGCollection
		if collection == "" {
			collection = s.ragCfg.Collection
		}
		rctx, cancel := context.WithTimeout(ctx, retrieveTimeout)
		found, err := s.retriever.Retrieve(rctx, message, collection, s.ragCfg.TopK)
		cancel()
		if err != nil {
			log.Warn("background retrieval failed", slog.String("error", err.Error()))
		} else {
			passages = found
		}
	}

	return prompt.Reply(prompt.ReplyInput{
		Message:   message,
		Topic:     topic,
		Summary:   summary,
		Log:       entries,
		Character: char,
		Script:    script,
		Language:  language,
		Passages:  passages,
		Custom:    s.registry.Setting(sessionID, "custom_prompt"),
	})
}

func (s *ReplyStage) settingOr(sessionID, key, fallback string) string {
	if v := s.registry.Setting(sessionID, key); v != "" {
		return v
	}
	return fallback
}

func clip(text string) string {
	if len(text) > 50 {
		return text[:50]
	}
	return text
}
