package pipeline

import (
	"context"
	"testing"

	"github.com/vocata-labs/vocata-core/internal/config"
	"github.com/vocata-labs/vocata-core/internal/llm"
	"github.com/vocata-labs/vocata-core/internal/session"
)

func TestParseSummary(t *testing.T) {
	cases := []struct {
		name, raw, summary, topic string
	}{
		{
			name:    "plain json",
			raw:     `{"summary": "They talked about food.", "next_topic": "cooking"}`,
			summary: "They talked about food.",
			topic:   "cooking",
		},
		{
			name:    "fenced json",
			raw:     "```json\n{\"summary\": \"Short.\", \"next_topic\": \"pets\"}\n```",
			summary: "Short.",
			topic:   "pets",
		},
		{
			name:    "raw text fallback",
			raw:     "The user introduced themselves as Ada.",
			summary: "The user introduced themselves as Ada.",
			topic:   "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			summary, topic := parseSummary(tc.raw)
			if summary != tc.summary || topic != tc.topic {
				t.Fatalf("parseSummary(%q) = (%q, %q), want (%q, %q)", tc.raw, summary, topic, tc.summary, tc.topic)
			}
		})
	}
}

func TestSummarizerUpdateStoresAndTrims(t *testing.T) {
	registry := session.NewRegistry("ENG")
	registry.Create("s1")
	for i := 0; i < 8; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		registry.AppendLog("s1", "model_5", session.LogEntry{Role: role, Text: "line"})
	}

	gen := &llm.MockGenerator{Completion: `{"summary": "Eight lines happened.", "next_topic": "weekend plans"}`}
	s := NewSummarizer(gen, registry, config.LLMConfig{Model: "sum", SummaryMaxTokens: 100}, 2, testLogger())

	s.Update(context.Background(), "s1", "model_5")

	if got := registry.Summary("s1", "model_5"); got != "Eight lines happened." {
		t.Fatalf("summary = %q", got)
	}
	if got := registry.Topic("s1", "model_5"); got != "weekend plans" {
		t.Fatalf("topic = %q", got)
	}
	if entries := registry.Log("s1", "model_5"); len(entries) != 2 {
		t.Fatalf("log should be trimmed to 2 entries, got %d", len(entries))
	}
}

func TestSummarizerEmptyLogIsNoop(t *testing.T) {
	registry := session.NewRegistry("ENG")
	registry.Create("s1")
	gen := &llm.MockGenerator{Completion: `{"summary": "ghost", "next_topic": "ghost"}`}
	s := NewSummarizer(gen, registry, config.LLMConfig{Model: "sum"}, 2, testLogger())

	s.Update(context.Background(), "s1", "model_5")

	if got := registry.Summary("s1", "model_5"); got != "" {
		t.Fatalf("empty log must not produce a summary, got %q", got)
	}
}
