package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/vocata-labs/vocata-core/internal/config"
	"github.com/vocata-labs/vocata-core/internal/llm"
	"github.com/vocata-labs/vocata-core/internal/prompt"
	"github.com/vocata-labs/vocata-core/internal/session"
)

// Summarizer condenses a growing conversation log into a rolling summary and
// a suggested next topic, then trims the log. It runs in the background and
// never blocks reply generation.
type Summarizer struct {
	generator llm.Generator
	registry  *session.Registry
	llmCfg    config.LLMConfig
	keep      int
	log       *slog.Logger
}

func NewSummarizer(generator llm.Generator, registry *session.Registry, llmCfg config.LLMConfig, keep int, log *slog.Logger) *Summarizer {
	return &Summarizer{
		generator: generator,
		registry:  registry,
		llmCfg:    llmCfg,
		keep:      keep,
		log:       log.With(slog.String("component", "summarizer")),
	}
}

// Update runs one summarization round for a session/character pair. The log
// is trimmed even when the model produces nothing useful, so a flaky
// summarizer cannot let the log grow without bound.
func (s *Summarizer) Update(ctx context.Context, sessionID, characterID string) {
	log := s.log.With(slog.String("session_id", sessionID), slog.String("character_id", characterID))

	previous := s.registry.Summary(sessionID, characterID)
	entries := s.registry.Log(sessionID, characterID)
	if len(entries) == 0 {
		return
	}

	model := s.llmCfg.SummarizerModel
	if model == "" {
		model = s.llmCfg.Model
	}
	raw, err := s.generator.Complete(ctx, llm.Request{
		SessionID:   sessionID,
		Prompt:      prompt.Summarize(previous, entries),
		Model:       model,
		MaxTokens:   s.llmCfg.SummaryMaxTokens,
		Temperature: 0.1,
	})
	if err != nil {
		log.Warn("summarization call failed", slog.String("error", err.Error()))
	} else {
		summary, topic := parseSummary(raw)
		if summary != "" {
			s.registry.SetSummary(sessionID, characterID, summary)
		}
		if topic != "" {
			s.registry.SetTopic(sessionID, characterID, topic)
		}
		if summary == "" && topic == "" {
			log.Warn("summarizer produced neither summary nor topic")
		} else {
			log.Debug("summary updated", slog.Int("summary_chars", len(summary)), slog.String("topic", topic))
		}
	}

	s.registry.TrimLog(sessionID, characterID, s.keep)
}

// parseSummary extracts summary and next_topic from model output. Models
// sometimes wrap the JSON in Markdown code fences despite instructions, so
// fences are stripped first; anything that still fails to parse is used
// verbatim as the summary.
func parseSummary(raw string) (summary, topic string) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Trim(cleaned, "`")
	cleaned = strings.TrimSpace(cleaned)
	if rest, ok := strings.CutPrefix(cleaned, "json"); ok {
		cleaned = strings.TrimSpace(rest)
	}

	var parsed struct {
		Summary   string `json:"summary"`
		NextTopic string `json:"next_topic"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return strings.TrimSpace(raw), ""
	}
	return strings.TrimSpace(parsed.Summary), strings.TrimSpace(parsed.NextTopic)
}
