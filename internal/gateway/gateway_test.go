package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vocata-labs/vocata-core/internal/config"
	"github.com/vocata-labs/vocata-core/internal/llm"
	"github.com/vocata-labs/vocata-core/internal/pipeline"
	"github.com/vocata-labs/vocata-core/internal/protocol"
	"github.com/vocata-labs/vocata-core/internal/session"
	"github.com/vocata-labs/vocata-core/internal/tts"
)

type fixture struct {
	registry *session.Registry
	guard    *session.Guard
	queues   *pipeline.QueueRegistry
	audio    *pipeline.AudioBus
	gateway  *Gateway
	server   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	registry := session.NewRegistry("ENG")
	guard := session.NewGuard(registry)
	queues := pipeline.NewQueueRegistry()
	audio := pipeline.NewAudioBus()

	reply := pipeline.NewReplyStage(
		llm.NewMockGenerator("All good."),
		nil, registry, guard, queues, nil, nil, nil,
		config.LLMConfig{Model: "test"},
		config.SessionConfig{DefaultCharacter: "model_5", DefaultScript: "script_1", SummarizeThreshold: 6, KeepLogEntries: 2},
		config.RAGConfig{},
		nil, log,
	)
	synth := pipeline.NewSynthesisStage(
		tts.NewMockSynth(), registry, guard, queues, audio,
		config.TTSConfig{Voice: "v", SampleRate: 16000},
		nil, log,
	)
	orch := pipeline.NewOrchestrator(registry, queues, audio, reply, synth, log)

	gw := New(orch, registry, guard, queues, audio, nil, nil, log)
	mux := http.NewServeMux()
	gw.Register(mux)
	server := httptest.NewServer(CORS(mux))

	t.Cleanup(func() {
		server.Close()
		orch.Close()
	})
	return &fixture{registry: registry, guard: guard, queues: queues, audio: audio, gateway: gw, server: server}
}

func (f *fixture) createSession(t *testing.T) string {
	t.Helper()
	resp, err := http.Post(f.server.URL+"/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create session status %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["session_id"] == "" {
		t.Fatalf("empty session id")
	}
	return body["session_id"]
}

func TestCreateAndDeleteSession(t *testing.T) {
	f := newFixture(t)
	sessionID := f.createSession(t)

	if !f.registry.Exists(sessionID) {
		t.Fatalf("session not registered")
	}

	req, _ := http.NewRequest(http.MethodDelete, f.server.URL+"/sessions/"+sessionID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d", resp.StatusCode)
	}
	if f.registry.Exists(sessionID) {
		t.Fatalf("session should be gone")
	}

	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status %d, want 404", resp.StatusCode)
	}
}

func TestRespondEnqueuesTextUtterance(t *testing.T) {
	f := newFixture(t)
	sessionID := f.createSession(t)

	payload, _ := json.Marshal(map[string]string{"session_id": sessionID, "text": "hello there"})
	resp, err := http.Post(f.server.URL+"/respond", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("respond status %d", resp.StatusCode)
	}

	// The stop packet lands before any reply audio.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	pkt, err := f.audio.Queue(sessionID).Get(ctx)
	if err != nil {
		t.Fatalf("no stop packet: %v", err)
	}
	if pkt.Type != protocol.PacketStop {
		t.Fatalf("first packet type %q, want stop", pkt.Type)
	}

	// The running reply stage consumes the recognition and synthesizes it.
	audioPkt, err := f.audio.Queue(sessionID).Get(ctx)
	if err != nil {
		t.Fatalf("no audio packet: %v", err)
	}
	if audioPkt.Type != protocol.PacketAudio || audioPkt.Sentence != "All good." {
		t.Fatalf("unexpected packet %+v", audioPkt)
	}

	snap, _ := f.registry.Snapshot(sessionID)
	if len(snap.History) != 1 || snap.History[0] != "hello there" {
		t.Fatalf("history = %+v", snap.History)
	}
}

func TestRespondValidation(t *testing.T) {
	f := newFixture(t)
	sessionID := f.createSession(t)

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"missing session", `{"text": "hi"}`, http.StatusBadRequest},
		{"missing text", `{"session_id": "` + sessionID + `"}`, http.StatusBadRequest},
		{"unknown session", `{"session_id": "nope", "text": "hi"}`, http.StatusNotFound},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(f.server.URL+"/respond", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("respond: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("status %d, want %d", resp.StatusCode, tc.status)
			}
		})
	}
}

func TestSettingsUpdate(t *testing.T) {
	f := newFixture(t)
	sessionID := f.createSession(t)

	payload := `{"character": "model_2", "language": "chn", "rag_mode": "true"}`
	resp, err := http.Post(f.server.URL+"/sessions/"+sessionID+"/settings", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settings status %d", resp.StatusCode)
	}

	if got := f.registry.Setting(sessionID, "character"); got != "model_2" {
		t.Fatalf("character setting = %q", got)
	}
	if got := f.registry.Language(sessionID); got != "CHN" {
		t.Fatalf("language = %q", got)
	}
}

func TestAudioOutStreamsPackets(t *testing.T) {
	f := newFixture(t)
	sessionID := f.createSession(t)

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/audio-out/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial audio-out: %v", err)
	}
	defer conn.Close()

	f.audio.Queue(sessionID).Put(protocol.AudioPacket{
		Type:       protocol.PacketAudio,
		SessionID:  sessionID,
		Sentence:   "Hi.",
		SampleRate: 16000,
		Tag:        "NEU",
		Audio:      []byte{1, 2, 3, 4},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var metadata map[string]any
	if err := conn.ReadJSON(&metadata); err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if metadata["type"] != protocol.PacketAudio || metadata["sentence"] != "Hi." {
		t.Fatalf("unexpected metadata %+v", metadata)
	}

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read audio: %v", err)
	}
	if msgType != websocket.BinaryMessage || len(data) != 4 {
		t.Fatalf("unexpected audio message type=%d len=%d", msgType, len(data))
	}
}

func TestAudioOutUnknownSession(t *testing.T) {
	f := newFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/audio-out/ghost"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("dial should fail for unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake, got %+v", resp)
	}
}
