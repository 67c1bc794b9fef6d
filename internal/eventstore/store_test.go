package eventstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/vocata-labs/vocata-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{RetentionMode: "ephemeral"}
	es, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	if err := es.Ensure(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if err := es.RecordUtterance(ctx, "s1", "t1", "hello"); err != nil {
		t.Fatalf("ephemeral write should be a no-op: %v", err)
	}
}

func TestRecordAndQueryTimeline(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "session"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	ctx := context.Background()
	sessionID := "session-123"
	if err := es.AppendSession(ctx, sessionID, "ENG", "model_5"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.RecordBargeIn(ctx, sessionID, "tok-1"); err != nil {
		t.Fatalf("record barge-in: %v", err)
	}
	if err := es.RecordUtterance(ctx, sessionID, "tok-1", "how are you"); err != nil {
		t.Fatalf("record utterance: %v", err)
	}
	if err := es.RecordReply(ctx, sessionID, "tok-1", "I am fine."); err != nil {
		t.Fatalf("record reply: %v", err)
	}

	events, err := es.ListSessionEvents(ctx, sessionID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Type != EventBargeIn || events[1].Type != EventUtterance || events[2].Type != EventReply {
		t.Fatalf("unexpected event order: %+v", events)
	}
	if events[1].Role != "user" || events[1].Text != "how are you" {
		t.Fatalf("unexpected utterance event: %+v", events[1])
	}
	if events[2].Token != "tok-1" {
		t.Fatalf("reply should carry its generation token: %+v", events[2])
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	es.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(context.Background(), "old-session", "ENG", "model_5"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.RecordUtterance(context.Background(), "old-session", "tok", "stale"); err != nil {
		t.Fatalf("record utterance: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendSession(context.Background(), "new-session", "ENG", "model_5"); err != nil {
		t.Fatalf("append session: %v", err)
	}
	if err := es.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := es.ListSessionEvents(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old session pruned")
	}
}
