package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/vocata-labs/vocata-core/internal/asr"
	"github.com/vocata-labs/vocata-core/internal/config"
	"github.com/vocata-labs/vocata-core/internal/llm"
	"github.com/vocata-labs/vocata-core/internal/protocol"
	"github.com/vocata-labs/vocata-core/internal/session"
	"github.com/vocata-labs/vocata-core/internal/tts"
)

type orchestratorFixture struct {
	registry      *session.Registry
	guard         *session.Guard
	queues        *QueueRegistry
	audio         *AudioBus
	transcription *TranscriptionStage
	orchestrator  *Orchestrator
}

func newOrchestratorFixture(t *testing.T, script ...asr.TranscriptEvent) *orchestratorFixture {
	t.Helper()
	registry := session.NewRegistry("ENG")
	guard := session.NewGuard(registry)
	queues := NewQueueRegistry()
	audio := NewAudioBus()
	log := testLogger()

	reply := NewReplyStage(
		llm.NewMockGenerator("I am doing fine. ", "Thanks for asking."),
		nil, registry, guard, queues, nil, nil, nil,
		config.LLMConfig{Model: "test"},
		config.SessionConfig{DefaultCharacter: "model_5", DefaultScript: "script_1", SummarizeThreshold: 6, KeepLogEntries: 2},
		config.RAGConfig{},
		nil, log,
	)
	synth := NewSynthesisStage(
		tts.NewMockSynth(), registry, guard, queues, audio,
		config.TTSConfig{Voice: "v", SampleRate: 16000},
		nil, log,
	)
	transcription := NewTranscriptionStage(
		asr.NewMockRecognizer(script...),
		registry, guard, queues, audio,
		config.ASRConfig{Language: "en-US", SampleRate: 16000, FrameDurationMS: 10},
		nil, nil, nil, log,
	)
	return &orchestratorFixture{
		registry:      registry,
		guard:         guard,
		queues:        queues,
		audio:         audio,
		transcription: transcription,
		orchestrator:  NewOrchestrator(registry, queues, audio, reply, synth, log),
	}
}

func TestOrchestratorLifecycle(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	f.orchestrator.Start(ctx, "s1")
	if !f.orchestrator.Active("s1") {
		t.Fatalf("session should be active after start")
	}
	if !f.registry.Exists("s1") {
		t.Fatalf("session state missing after start")
	}

	f.orchestrator.Stop("s1")
	if f.orchestrator.Active("s1") {
		t.Fatalf("session should be inactive after stop")
	}
	if f.registry.Exists("s1") {
		t.Fatalf("session state should be gone after stop")
	}

	// Stopping again is a no-op.
	f.orchestrator.Stop("s1")
}

func TestOrchestratorRestartGivesFreshState(t *testing.T) {
	f := newOrchestratorFixture(t)
	ctx := context.Background()

	f.orchestrator.Start(ctx, "s1")
	f.registry.AppendHistory("s1", "old utterance")

	f.orchestrator.Start(ctx, "s1")
	defer f.orchestrator.Close()

	snap, ok := f.registry.Snapshot("s1")
	if !ok {
		t.Fatalf("session missing after restart")
	}
	if len(snap.History) != 0 {
		t.Fatalf("restart must reset state, found history %+v", snap.History)
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	f := newOrchestratorFixture(t,
		asr.TranscriptEvent{Text: "how"},
		asr.TranscriptEvent{Text: "how are you"},
		asr.TranscriptEvent{Text: "how are you", Final: true},
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f.orchestrator.Start(ctx, "e2e")
	defer f.orchestrator.Close()

	if err := f.transcription.Run(ctx, "e2e"); err != nil {
		t.Fatalf("transcription: %v", err)
	}

	out := f.audio.Queue("e2e")
	first, err := out.Get(ctx)
	if err != nil {
		t.Fatalf("no first packet: %v", err)
	}
	if first.Type != protocol.PacketStop {
		t.Fatalf("first packet should be the barge-in stop, got %+v", first)
	}

	var sentences []string
	for len(sentences) < 2 {
		pkt, err := out.Get(ctx)
		if err != nil {
			t.Fatalf("missing audio packets, got %v so far: %v", sentences, err)
		}
		if pkt.Type != protocol.PacketAudio || len(pkt.Audio) == 0 {
			t.Fatalf("unexpected packet %+v", pkt)
		}
		sentences = append(sentences, pkt.Sentence)
	}
	if sentences[0] != "I am doing fine." || sentences[1] != "Thanks for asking." {
		t.Fatalf("unexpected spoken sentences: %v", sentences)
	}

	snap, ok := f.registry.Snapshot("e2e")
	if !ok {
		t.Fatalf("session missing")
	}
	if len(snap.History) != 1 || snap.History[0] != "how are you" {
		t.Fatalf("history = %+v", snap.History)
	}
}
